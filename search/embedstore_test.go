package search

import (
	"context"
	"errors"
	"testing"

	"coursebot/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	saved   []types.EmbeddingRecord
	replace bool
	calls   int
	err     error
}

func (f *fakeWriter) SaveEmbeddings(_ context.Context, _ int64, records []types.EmbeddingRecord, replace bool) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.saved = records
	f.replace = replace
	return len(records), nil
}

type failingOnEmbedder struct {
	fakeEmbedder
	failOn string
}

func (f *failingOnEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == f.failOn {
		return nil, errors.New("rate limited")
	}
	return f.fakeEmbedder.Embed(ctx, text)
}

func testChunks() []types.Chunk {
	return []types.Chunk{
		{MaterialID: 9, Index: 0, Page: 1, Text: "first"},
		{MaterialID: 9, Index: 1, Page: 2, Text: "second"},
		{MaterialID: 9, Index: 2, Page: 2, Text: "third"},
	}
}

func TestPersistWritesEveryChunk(t *testing.T) {
	w := &fakeWriter{}
	s := NewEmbeddingStore(&fakeEmbedder{model: "ollama:test"}, w, 2, zerolog.Nop())

	n, err := s.Persist(context.Background(), 9, testChunks())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, w.replace)
	require.Len(t, w.saved, 3)
	assert.Equal(t, "second", w.saved[1].ChunkText)
	assert.Equal(t, 2, w.saved[1].PageNumber)
	assert.Equal(t, 1, w.saved[1].ChunkIndex)
	assert.Equal(t, "ollama:test", w.saved[1].Model)
	assert.Len(t, w.saved[1].Vector, 2)
}

func TestPersistIsAtomicOnEmbeddingFailure(t *testing.T) {
	w := &fakeWriter{}
	emb := &failingOnEmbedder{fakeEmbedder: fakeEmbedder{model: "test"}, failOn: "third"}
	s := NewEmbeddingStore(emb, w, 0, zerolog.Nop())

	n, err := s.Persist(context.Background(), 9, testChunks())

	assert.ErrorIs(t, err, types.ErrEmbeddingService)
	assert.Zero(t, n)
	assert.Zero(t, w.calls, "nothing may be written when a chunk fails")
}

func TestPersistRejectsWrongDimension(t *testing.T) {
	w := &fakeWriter{}
	s := NewEmbeddingStore(&fakeEmbedder{model: "test"}, w, 768, zerolog.Nop())

	_, err := s.Persist(context.Background(), 9, testChunks())

	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Zero(t, w.calls)
}

func TestPersistWrapsStorageErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("tx aborted")}
	s := NewEmbeddingStore(&fakeEmbedder{model: "test"}, w, 2, zerolog.Nop())

	_, err := s.Persist(context.Background(), 9, testChunks())

	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestPersistNothing(t *testing.T) {
	w := &fakeWriter{}
	s := NewEmbeddingStore(&fakeEmbedder{model: "test"}, w, 2, zerolog.Nop())

	n, err := s.Persist(context.Background(), 9, nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, w.calls)
}

func TestReplaceClearsEvenWithoutChunks(t *testing.T) {
	w := &fakeWriter{}
	s := NewEmbeddingStore(&fakeEmbedder{model: "test"}, w, 2, zerolog.Nop())

	n, err := s.Replace(context.Background(), 9, nil)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, w.calls)
	assert.True(t, w.replace)
}
