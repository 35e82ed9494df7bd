package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainEmbedder embeds through an OpenAI-compatible endpoint.
type LangchainEmbedder struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

func NewLangchainEmbedder(baseURL, apiKey, model string) (*LangchainEmbedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: embedder, model: model}, nil
}

func (e *LangchainEmbedder) ModelID() string {
	return "openai:" + e.model
}

func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

type LangchainGenerator struct {
	llm     llms.Model
	timeout time.Duration
}

func NewLangchainGenerator(baseURL, apiKey, model string, timeout time.Duration) (*LangchainGenerator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return &LangchainGenerator{llm: llm, timeout: timeout}, nil
}

func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
}
