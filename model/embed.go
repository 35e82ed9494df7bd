package model

import (
	"context"
	"fmt"
	"time"

	"coursebot/config"

	"github.com/rs/zerolog"
)

// Embedder turns text into a vector. Every ingestion and every query that
// share a corpus must go through the same ModelID.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// Generator is the black-box text generation service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewEmbedder picks the embedding backend configured for the deployment.
func NewEmbedder(cfg config.ProviderConfig, timeout time.Duration, logger zerolog.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		logger.Info().Str("model", cfg.Model).Str("url", cfg.URL).Msg("uses local Ollama for embeddings")
		return NewOllamaEmbedder(cfg.URL, cfg.Model, timeout), nil
	case "openai":
		logger.Info().Str("model", cfg.Model).Str("url", cfg.URL).Msg("uses OpenAI-compatible endpoint for embeddings")
		return NewLangchainEmbedder(cfg.URL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func NewGenerator(cfg config.ProviderConfig, timeout time.Duration, logger zerolog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "ollama":
		logger.Info().Str("model", cfg.Model).Str("url", cfg.URL).Msg("uses local Ollama for generation")
		return NewOllamaGenerator(cfg.URL, cfg.Model, timeout), nil
	case "openai":
		logger.Info().Str("model", cfg.Model).Str("url", cfg.URL).Msg("uses OpenAI-compatible endpoint for generation")
		return NewLangchainGenerator(cfg.URL, cfg.APIKey, cfg.Model, timeout)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
