package agent

import (
	"context"
	"time"

	"coursebot/metrics"
	"coursebot/search"
	"coursebot/types"

	"github.com/rs/zerolog"
)

const (
	DefaultTopK = 5

	genericFailure = "An error occurred while processing your question. Please try again."
)

// Pipeline answers questions end to end. Answer is the only recovery point
// on the query path: end users always get an AnswerResult.
type Pipeline struct {
	retriever   search.Retriever
	synthesizer *Synthesizer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewPipeline(retriever search.Retriever, synthesizer *Synthesizer, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		retriever:   retriever,
		synthesizer: synthesizer,
		metrics:     m,
		logger:      logger.With().Str("component", "query").Logger(),
	}
}

// Answer retrieves up to topK chunks (DefaultTopK when topK <= 0) and
// synthesizes an answer from them. A failed search is logged and answered
// as if nothing matched.
func (p *Pipeline) Answer(ctx context.Context, question string, subjectID *int64, topK int) (res types.AnswerResult) {
	start := time.Now()
	mode := modeError
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("question", question).Msg("query pipeline panicked")
			res = types.AnswerResult{Answer: genericFailure, Sources: []types.Source{}, Confidence: 0.0}
			mode = modeError
		}
		p.metrics.QueryDone(mode, time.Since(start).Seconds(), res.Confidence)
	}()

	if topK <= 0 {
		topK = DefaultTopK
	}

	retrieved, err := p.retriever.Search(ctx, question, subjectID, topK)
	if err != nil {
		p.logger.Error().Err(err).Msg("retrieval failed, answering without context")
		retrieved = nil
	}

	res, mode = p.synthesizer.synthesize(ctx, question, retrieved)

	p.logger.Info().
		Int("retrieved", len(retrieved)).
		Str("mode", mode).
		Float64("confidence", res.Confidence).
		Dur("took", time.Since(start)).
		Msg("question answered")
	return res
}
