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

type fakeEmbedder struct {
	model   string
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) ModelID() string { return f.model }

type fakeReader struct {
	chunks    []types.RetrievedChunk
	bySubject map[int64][]types.RetrievedChunk
	err       error
}

func (f *fakeReader) ListEmbeddings(_ context.Context, subjectID *int64) ([]types.RetrievedChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if subjectID != nil {
		return f.bySubject[*subjectID], nil
	}
	return f.chunks, nil
}

func candidate(id int64, model string, vec ...float32) types.RetrievedChunk {
	return types.RetrievedChunk{
		EmbeddingRecord: types.EmbeddingRecord{
			ID:         id,
			MaterialID: 1,
			ChunkText:  "chunk",
			Vector:     vec,
			Model:      model,
		},
		MaterialTitle: "Lecture 1",
	}
}

func ids(chunks []types.RetrievedChunk) []int64 {
	out := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}

func newTestEngine(reader *fakeReader) *Engine {
	return NewEngine(&fakeEmbedder{model: "test"}, reader, zerolog.Nop())
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	reader := &fakeReader{chunks: []types.RetrievedChunk{
		candidate(1, "test", 0, 1),
		candidate(2, "test", 0.9, 0.43589),
		candidate(3, "test", 0.5, 0.866),
	}}

	got, err := newTestEngine(reader).Search(context.Background(), "q", nil, 2)

	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, ids(got))
	assert.InDelta(t, 0.9, got[0].Similarity, 1e-3)
	assert.InDelta(t, 0.5, got[1].Similarity, 1e-3)
}

func TestSearchTopKLargerThanCorpus(t *testing.T) {
	reader := &fakeReader{chunks: []types.RetrievedChunk{
		candidate(1, "test", 1, 0),
		candidate(2, "test", 1, 1),
	}}

	got, err := newTestEngine(reader).Search(context.Background(), "q", nil, 10)

	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchTiesKeepStoreOrder(t *testing.T) {
	reader := &fakeReader{chunks: []types.RetrievedChunk{
		candidate(5, "test", 2, 0),
		candidate(3, "test", 1, 0),
		candidate(9, "test", 4, 0),
	}}

	got, err := newTestEngine(reader).Search(context.Background(), "q", nil, 3)

	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3, 9}, ids(got))
}

func TestSearchEmptyCorpus(t *testing.T) {
	got, err := newTestEngine(&fakeReader{}).Search(context.Background(), "q", nil, 5)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchUnknownSubject(t *testing.T) {
	reader := &fakeReader{
		chunks:    []types.RetrievedChunk{candidate(1, "test", 1, 0)},
		bySubject: map[int64][]types.RetrievedChunk{},
	}
	subject := int64(42)

	got, err := newTestEngine(reader).Search(context.Background(), "q", &subject, 5)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchSkipsIncomparableVectors(t *testing.T) {
	reader := &fakeReader{chunks: []types.RetrievedChunk{
		candidate(1, "test"),
		candidate(2, "other-model", 1, 0),
		candidate(3, "test", 1, 0, 0),
		candidate(4, "", 0, 1),
		candidate(5, "test", 1, 0),
	}}

	got, err := newTestEngine(reader).Search(context.Background(), "q", nil, 10)

	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4}, ids(got))
}

func TestSearchNonPositiveTopK(t *testing.T) {
	emb := &fakeEmbedder{model: "test"}
	e := NewEngine(emb, &fakeReader{chunks: []types.RetrievedChunk{candidate(1, "test", 1, 0)}}, zerolog.Nop())

	got, err := e.Search(context.Background(), "q", nil, 0)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
}

func TestSearchErrors(t *testing.T) {
	embedErr := errors.New("embedder down")
	e := NewEngine(&fakeEmbedder{model: "test", err: embedErr}, &fakeReader{}, zerolog.Nop())
	_, err := e.Search(context.Background(), "q", nil, 5)
	assert.ErrorIs(t, err, embedErr)

	e = NewEngine(&fakeEmbedder{model: "test"}, &fakeReader{err: errors.New("db gone")}, zerolog.Nop())
	_, err = e.Search(context.Background(), "q", nil, 5)
	assert.ErrorIs(t, err, types.ErrStorage)
}
