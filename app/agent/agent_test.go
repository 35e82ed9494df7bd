package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coursebot/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	answer string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.answer, g.err
}

func retrieved(materialID int64, title string, page int, sim float64, text string) types.RetrievedChunk {
	return types.RetrievedChunk{
		EmbeddingRecord: types.EmbeddingRecord{
			MaterialID: materialID,
			ChunkText:  text,
			PageNumber: page,
		},
		MaterialTitle: title,
		Similarity:    sim,
	}
}

func TestSynthesizeWithoutContext(t *testing.T) {
	gen := &fakeGenerator{answer: "No relevant course material was found. In general, ..."}
	s := NewSynthesizer(gen, zerolog.Nop())

	res := s.Synthesize(context.Background(), "What is entropy?", nil)

	assert.Equal(t, NoContextConfidence, res.Confidence)
	assert.Equal(t, 0.3, res.Confidence)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.Equal(t, gen.answer, res.Answer)
	assert.Contains(t, gen.prompt, "What is entropy?")
	assert.Contains(t, gen.prompt, "no relevant course material was found")
}

func TestSynthesizeWithContext(t *testing.T) {
	gen := &fakeGenerator{answer: "Entropy is ..."}
	s := NewSynthesizer(gen, zerolog.Nop(), WithTokenCounter(func(text string) int { return len(strings.Fields(text)) }))
	chunks := []types.RetrievedChunk{
		retrieved(1, "Thermodynamics", 4, 0.9, "Entropy measures disorder."),
		retrieved(2, "Statistics", 7, 0.5, "Shannon entropy."),
		retrieved(1, "Thermodynamics", 4, 0.7, "Second law."),
	}

	res := s.Synthesize(context.Background(), "What is entropy?", chunks)

	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, gen.answer, res.Answer)
	assert.Equal(t, []types.Source{
		{MaterialID: 1, Material: "Thermodynamics", Page: 4},
		{MaterialID: 2, Material: "Statistics", Page: 7},
	}, res.Sources)

	first := strings.Index(gen.prompt, "[Ref: Thermodynamics, Page 4]:\nEntropy measures disorder.")
	second := strings.Index(gen.prompt, "[Ref: Statistics, Page 7]:\nShannon entropy.")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "context keeps retrieval order")
	assert.Contains(t, gen.prompt, "Definition")
	assert.Contains(t, gen.prompt, "Sources")
}

func TestSynthesizeSamePageOfDifferentMaterials(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{answer: "ok"}, zerolog.Nop())
	chunks := []types.RetrievedChunk{
		retrieved(1, "A", 1, 0.8, "x"),
		retrieved(2, "B", 1, 0.6, "y"),
	}

	res := s.Synthesize(context.Background(), "q", chunks)

	assert.Len(t, res.Sources, 2)
}

func TestSynthesizeGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	s := NewSynthesizer(gen, zerolog.Nop())

	res := s.Synthesize(context.Background(), "q", []types.RetrievedChunk{retrieved(1, "A", 1, 0.9, "x")})

	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Sources)
	assert.Contains(t, res.Answer, "error while generating the answer")
	assert.Contains(t, res.Answer, "connection refused")
}

func TestMeanSimilarityFloor(t *testing.T) {
	chunks := []types.RetrievedChunk{
		retrieved(1, "A", 1, -0.4, "x"),
		retrieved(1, "A", 2, 0.1, "y"),
	}
	assert.Zero(t, meanSimilarity(chunks))
}

func TestSelectPrompt(t *testing.T) {
	assert.IsType(t, noContextPrompt{}, selectPrompt(nil))
	assert.IsType(t, contextPrompt{}, selectPrompt([]types.RetrievedChunk{retrieved(1, "A", 1, 1, "x")}))
}
