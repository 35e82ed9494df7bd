package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaEmbedder реализует создание эмбеддингов через Ollama
type OllamaEmbedder struct {
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(apiURL, model string, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		apiURL:  apiURL,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

func (e *OllamaEmbedder) ModelID() string {
	return "ollama:" + e.model
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp OllamaEmbeddingResponse
	err := postJSON(ctx, e.client, e.apiURL, e.timeout, OllamaEmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// OllamaGenerator calls /api/generate with streaming disabled.
type OllamaGenerator struct {
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaGenerator(apiURL, model string, timeout time.Duration) *OllamaGenerator {
	return &OllamaGenerator{
		apiURL:  apiURL,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := doPost(ctx, g.client, g.apiURL, g.timeout, GenerateRequest{
		Model:  g.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Потоковый ответ: соберём всё в строку
	var b bytes.Buffer
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		b.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("ollama returned an empty response")
	}
	return b.String(), nil
}

func postJSON(ctx context.Context, client *http.Client, url string, timeout time.Duration, req, out any) error {
	body, err := doPost(ctx, client, url, timeout, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func doPost(ctx context.Context, client *http.Client, url string, timeout time.Duration, req any) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
