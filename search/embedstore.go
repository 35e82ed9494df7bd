package search

import (
	"context"
	"fmt"

	"coursebot/model"
	"coursebot/types"

	"github.com/rs/zerolog"
)

type EmbeddingWriter interface {
	SaveEmbeddings(ctx context.Context, materialID int64, records []types.EmbeddingRecord, replace bool) (int, error)
}

// EmbeddingStore embeds chunks and writes them as one atomic unit per
// material.
type EmbeddingStore struct {
	embedder  model.Embedder
	repo      EmbeddingWriter
	dimension int
	logger    zerolog.Logger
}

// NewEmbeddingStore checks every produced vector against dimension; pass 0
// to accept whatever the model returns.
func NewEmbeddingStore(embedder model.Embedder, repo EmbeddingWriter, dimension int, logger zerolog.Logger) *EmbeddingStore {
	return &EmbeddingStore{
		embedder:  embedder,
		repo:      repo,
		dimension: dimension,
		logger:    logger.With().Str("component", "embedder").Logger(),
	}
}

func (s *EmbeddingStore) ModelID() string {
	return s.embedder.ModelID()
}

func (s *EmbeddingStore) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingService, err)
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d values, want %d",
			types.ErrDimensionMismatch, s.embedder.ModelID(), len(vec), s.dimension)
	}
	return vec, nil
}

// Persist appends one row per chunk. Nothing is written unless every chunk
// was embedded.
func (s *EmbeddingStore) Persist(ctx context.Context, materialID int64, chunks []types.Chunk) (int, error) {
	return s.persist(ctx, materialID, chunks, false)
}

// Replace is Persist that also drops the material's earlier rows inside the
// same transaction.
func (s *EmbeddingStore) Replace(ctx context.Context, materialID int64, chunks []types.Chunk) (int, error) {
	return s.persist(ctx, materialID, chunks, true)
}

func (s *EmbeddingStore) persist(ctx context.Context, materialID int64, chunks []types.Chunk, replace bool) (int, error) {
	if len(chunks) == 0 && !replace {
		return 0, nil
	}

	modelID := s.embedder.ModelID()
	records := make([]types.EmbeddingRecord, 0, len(chunks))
	for _, c := range chunks {
		vec, err := s.Embed(ctx, c.Text)
		if err != nil {
			return 0, fmt.Errorf("chunk %d of material %d: %w", c.Index, materialID, err)
		}
		records = append(records, types.EmbeddingRecord{
			MaterialID: materialID,
			ChunkText:  c.Text,
			ChunkIndex: c.Index,
			PageNumber: c.Page,
			Vector:     vec,
			Model:      modelID,
		})
	}

	n, err := s.repo.SaveEmbeddings(ctx, materialID, records, replace)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	s.logger.Info().Int64("material_id", materialID).Int("count", n).Str("model", modelID).Msg("stored embeddings")
	return n, nil
}
