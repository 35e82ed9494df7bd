package search

import (
	"context"
	"fmt"
	"sort"

	"coursebot/types"

	"github.com/rs/zerolog"
)

// Retriever ranks stored chunks for a query. Engine is a brute-force scan;
// an indexed implementation can sit behind the same method.
type Retriever interface {
	Search(ctx context.Context, query string, subjectID *int64, topK int) ([]types.RetrievedChunk, error)
}

type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

type EmbeddingReader interface {
	ListEmbeddings(ctx context.Context, subjectID *int64) ([]types.RetrievedChunk, error)
}

type Engine struct {
	embedder QueryEmbedder
	repo     EmbeddingReader
	logger   zerolog.Logger
}

func NewEngine(embedder QueryEmbedder, repo EmbeddingReader, logger zerolog.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		repo:     repo,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Search scores every candidate against the query and returns at most topK
// of them, best first. Ties keep the order the store returned them in. An
// empty corpus is not an error.
func (e *Engine) Search(ctx context.Context, query string, subjectID *int64, topK int) ([]types.RetrievedChunk, error) {
	results := []types.RetrievedChunk{}
	if topK <= 0 {
		return results, nil
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := e.repo.ListEmbeddings(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("%w: load embeddings: %w", types.ErrStorage, err)
	}

	modelID := e.embedder.ModelID()
	var empty, otherModel, otherDim int
	for _, c := range candidates {
		switch {
		case len(c.Vector) == 0:
			empty++
			continue
		case c.Model != "" && c.Model != modelID:
			otherModel++
			continue
		case len(c.Vector) != len(queryVec):
			otherDim++
			continue
		}
		c.Similarity = CosineSimilarity(queryVec, c.Vector)
		results = append(results, c)
	}
	if otherModel > 0 || otherDim > 0 {
		e.logger.Warn().
			Int("other_model", otherModel).
			Int("other_dimension", otherDim).
			Str("model", modelID).
			Msg("skipped embeddings that cannot be compared with the query")
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	ev := e.logger.Debug().Int("candidates", len(candidates)).Int("skipped_empty", empty).Int("returned", len(results))
	if subjectID != nil {
		ev = ev.Int64("subject_id", *subjectID)
	}
	ev.Msg("search finished")
	return results, nil
}
