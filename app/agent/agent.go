package agent

import (
	"context"
	"fmt"
	"time"

	"coursebot/model"
	"coursebot/types"

	"github.com/rs/zerolog"
)

// Synthesizer asks the generative model for an answer and attaches
// confidence and sources derived from retrieval.
type Synthesizer struct {
	generator model.Generator
	tokens    model.TokenCounter
	logger    zerolog.Logger
}

type SynthesizerOption func(*Synthesizer)

// WithTokenCounter enables prompt size logging in tokens.
func WithTokenCounter(tc model.TokenCounter) SynthesizerOption {
	return func(s *Synthesizer) { s.tokens = tc }
}

func NewSynthesizer(generator model.Generator, logger zerolog.Logger, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		generator: generator,
		logger:    logger.With().Str("component", "agent").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize never returns an error: a failed generation call is reported
// in the answer text with zero confidence.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, retrieved []types.RetrievedChunk) types.AnswerResult {
	res, _ := s.synthesize(ctx, question, retrieved)
	return res
}

// answer modes as reported to metrics
const (
	modeContext   = "context"
	modeNoContext = "no_context"
	modeError     = "error"
)

func (s *Synthesizer) synthesize(ctx context.Context, question string, retrieved []types.RetrievedChunk) (types.AnswerResult, string) {
	prompt := selectPrompt(retrieved).Build(question, retrieved)

	ev := s.logger.Debug().Int("chunks", len(retrieved)).Int("prompt_chars", len(prompt))
	if s.tokens != nil {
		ev = ev.Int("prompt_tokens", s.tokens(prompt))
	}
	ev.Msg("starting prompt to LLM")

	start := time.Now()
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(fmt.Errorf("%w: %w", types.ErrGeneration, err)).Dur("took", time.Since(start)).Msg("LLM call failed")
		return types.AnswerResult{
			Answer:     "I encountered an error while generating the answer: " + err.Error(),
			Sources:    []types.Source{},
			Confidence: 0.0,
		}, modeError
	}
	s.logger.Debug().Dur("took", time.Since(start)).Int("answer_chars", len(answer)).Msg("LLM answered")

	if len(retrieved) == 0 {
		return types.AnswerResult{
			Answer:     answer,
			Sources:    []types.Source{},
			Confidence: NoContextConfidence,
		}, modeNoContext
	}
	return types.AnswerResult{
		Answer:     answer,
		Sources:    sourcesOf(retrieved),
		Confidence: meanSimilarity(retrieved),
	}, modeContext
}

// meanSimilarity is floored at 0 since cosine similarity can go negative
// while confidence cannot.
func meanSimilarity(retrieved []types.RetrievedChunk) float64 {
	var sum float64
	for _, r := range retrieved {
		sum += r.Similarity
	}
	return max(sum/float64(len(retrieved)), 0)
}

// sourcesOf lists each (material, page) once, in first-cited order.
func sourcesOf(retrieved []types.RetrievedChunk) []types.Source {
	type key struct {
		material int64
		page     int
	}
	seen := make(map[key]struct{}, len(retrieved))
	sources := make([]types.Source, 0, len(retrieved))
	for _, r := range retrieved {
		k := key{r.MaterialID, r.PageNumber}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sources = append(sources, types.Source{
			MaterialID: r.MaterialID,
			Material:   r.MaterialTitle,
			Page:       r.PageNumber,
		})
	}
	return sources
}
