package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursebot/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OllamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		w.Write([]byte(`{"embedding":[0.5,-1,2]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text", time.Second)
	vec, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2}, vec)
	assert.Equal(t, "ollama:nomic-embed-text", e.ModelID())
}

func TestOllamaEmbedderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.Write([]byte(`{"embedding":[]}`))
			return
		}
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL+"/missing", "x", time.Second).Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 404")

	_, err = NewOllamaEmbedder(srv.URL+"/empty", "x", time.Second).Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "empty embedding")
}

func TestOllamaGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		w.Write([]byte(`{"response":"Forty-two.","done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaGenerator(srv.URL, "llama3.1", time.Second).Generate(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, "Forty-two.", out)
}

func TestOllamaGeneratorStreamedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"response\":\"\",\"done\":false}\n{\"response\":\"Forty\",\"done\":false}\n{\"response\":\"-two.\",\"done\":true}\n"))
	}))
	defer srv.Close()

	out, err := NewOllamaGenerator(srv.URL, "llama3.1", time.Second).Generate(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, "Forty-two.", out)
}

func TestOllamaGeneratorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewOllamaGenerator(srv.URL, "llama3.1", 20*time.Millisecond).Generate(context.Background(), "question")

	assert.Error(t, err)
}

func TestNewEmbedderProviders(t *testing.T) {
	e, err := NewEmbedder(config.ProviderConfig{Provider: "ollama", URL: "http://localhost:11434/api/embeddings", Model: "m"}, time.Second, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaEmbedder{}, e)

	e, err = NewEmbedder(config.ProviderConfig{Provider: "openai", URL: "http://localhost:8080/v1", Model: "text-embedding-3-small", APIKey: "sk-test"}, time.Second, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", e.ModelID())

	_, err = NewEmbedder(config.ProviderConfig{Provider: "bert"}, time.Second, zerolog.Nop())
	assert.Error(t, err)
}

func TestNewGeneratorProviders(t *testing.T) {
	g, err := NewGenerator(config.ProviderConfig{Provider: "ollama", URL: "http://localhost:11434/api/generate", Model: "m"}, time.Second, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &OllamaGenerator{}, g)

	_, err = NewGenerator(config.ProviderConfig{Provider: "bert"}, time.Second, zerolog.Nop())
	assert.Error(t, err)
}
