package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coursebot/loader/internal"
	"coursebot/metrics"
	"coursebot/types"

	"github.com/rs/zerolog"
)

type MaterialStore interface {
	GetMaterial(context.Context, int64) (*types.Material, error)
	ListPendingMaterials(context.Context, int) ([]types.Material, error)
	MarkMaterialProcessed(context.Context, int64) error
	SaveImage(context.Context, types.ExtractedImage) (int64, error)
}

// ChunkPersister stores a material's chunks atomically, replacing whatever
// was stored for it before.
type ChunkPersister interface {
	Replace(ctx context.Context, materialID int64, chunks []types.Chunk) (int, error)
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	ImagesDir    string
	PollInterval time.Duration
	MaxAttempts  int
}

type Option func(*Service)

func WithTextExtractor(e internal.TextExtractor) Option {
	return func(s *Service) { s.text = e }
}

func WithImageExtractor(e internal.ImageExtractor) Option {
	return func(s *Service) { s.images = e }
}

func WithImageStore(st internal.ImageStore) Option {
	return func(s *Service) { s.imageStore = st }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service runs the ingestion pipeline: text and image extraction, chunking,
// embedding and persistence.
type Service struct {
	cfg        Config
	store      MaterialStore
	embeddings ChunkPersister
	text       internal.TextExtractor
	images     internal.ImageExtractor
	imageStore internal.ImageStore
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	pendingMu sync.Mutex
	queued    map[int64]bool
	attempts  map[int64]int
}

func New(cfg Config, store MaterialStore, embeddings ChunkPersister, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	s := &Service{
		cfg:        cfg,
		store:      store,
		embeddings: embeddings,
		text:       internal.PDFTextExtractor{},
		images:     internal.PDFImageExtractor{},
		logger:     logger.With().Str("component", "loader").Logger(),
		locks:      make(map[int64]*sync.Mutex),
		queued:     make(map[int64]bool),
		attempts:   make(map[int64]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.imageStore == nil {
		st, err := internal.NewDirImageStore(cfg.ImagesDir)
		if err != nil {
			return nil, err
		}
		s.imageStore = st
	}
	if cfg.ChunkOverlap > 0 {
		s.logger.Warn().Int("overlap", cfg.ChunkOverlap).Msg("chunk overlap is reserved and not applied; chunks are cut at paragraph boundaries")
	}
	return s, nil
}

// lock serializes ingestion of one material. Locks are kept for the life of
// the service; there is one per material ever ingested.
func (s *Service) lock(materialID int64) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[materialID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[materialID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// IngestMaterial looks up the stored path of a material and ingests it.
func (s *Service) IngestMaterial(ctx context.Context, materialID int64) (types.IngestResult, error) {
	m, err := s.store.GetMaterial(ctx, materialID)
	if err != nil {
		return types.IngestResult{}, err
	}
	return s.Ingest(ctx, m.FilePath, m.ID)
}

// Ingest processes one PDF for materialID. Text extraction and persistence
// failures are returned; image failures are logged and skipped.
func (s *Service) Ingest(ctx context.Context, pdfPath string, materialID int64) (res types.IngestResult, err error) {
	unlock := s.lock(materialID)
	defer unlock()

	start := time.Now()
	logger := s.logger.With().Int64("material_id", materialID).Str("path", pdfPath).Logger()
	logger.Info().Msg("ingestion started")
	defer func() {
		s.metrics.IngestionDone(err, res.ChunkCount, res.ImageCount)
		if err != nil {
			logger.Error().Err(err).Msg("ingestion failed")
			return
		}
		logger.Info().
			Int("chunks", res.ChunkCount).
			Int("images", res.ImageCount).
			Dur("took", time.Since(start)).
			Msg("ingestion finished")
	}()

	pages, textErr := s.text.ExtractText(ctx, pdfPath)
	res.ImageCount = s.extractImages(ctx, pdfPath, materialID, logger)
	if textErr != nil {
		if !errors.Is(textErr, types.ErrExtraction) && ctx.Err() == nil {
			textErr = fmt.Errorf("%w: %w", types.ErrExtraction, textErr)
		}
		return res, textErr
	}
	logger.Debug().Int("pages", len(pages)).Msg("extracted text")

	chunks := internal.Chunk(materialID, pages, internal.ChunkOptions{
		MaxChars: s.cfg.ChunkSize,
		Overlap:  s.cfg.ChunkOverlap,
	})
	logger.Debug().Int("chunks", len(chunks)).Int("max_chars", s.cfg.ChunkSize).Msg("created text chunks")

	n, err := s.embeddings.Replace(ctx, materialID, chunks)
	if err != nil {
		return res, err
	}
	res.ChunkCount = n

	if err := s.store.MarkMaterialProcessed(ctx, materialID); err != nil {
		return res, fmt.Errorf("%w: mark processed: %w", types.ErrStorage, err)
	}
	return res, nil
}

// extractImages saves every image it can and returns how many made it.
func (s *Service) extractImages(ctx context.Context, pdfPath string, materialID int64, logger zerolog.Logger) int {
	saved := 0
	err := s.images.ExtractImages(ctx, pdfPath, func(img internal.PageImage) error {
		name := internal.ImageFileName(materialID, img.Page, img.Ext)
		path, err := s.imageStore.Save(ctx, name, img.Data)
		if err != nil {
			logger.Warn().Err(err).Int("page", img.Page).Msg("failed to save image")
			return nil
		}
		if _, err := s.store.SaveImage(ctx, types.ExtractedImage{
			MaterialID: materialID,
			Path:       path,
			Page:       img.Page,
			Type:       img.Ext,
		}); err != nil {
			logger.Warn().Err(err).Str("image", path).Msg("failed to record image")
		}
		saved++
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Int("saved", saved).Msg("image extraction stopped early")
	}
	return saved
}

// Run polls for unprocessed materials and ingests them one at a time until
// ctx is cancelled. A material that keeps failing is parked after
// MaxAttempts until the service restarts.
func (s *Service) Run(ctx context.Context) {
	queue := make(chan types.Material, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processQueue(ctx, queue)
	}()

	s.watchPending(ctx, queue)
	wg.Wait()
	s.logger.Info().Msg("loader service stopped")
}

func (s *Service) watchPending(ctx context.Context, queue chan<- types.Material) {
	defer close(queue)

	s.logger.Info().Dur("interval", s.cfg.PollInterval).Msg("start watching for pending materials")
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.enqueuePending(ctx, queue)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) enqueuePending(ctx context.Context, queue chan<- types.Material) {
	materials, err := s.store.ListPendingMaterials(ctx, cap(queue))
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("error while listing pending materials")
		}
		return
	}

	for _, m := range materials {
		s.pendingMu.Lock()
		skip := s.queued[m.ID] || s.attempts[m.ID] >= s.cfg.MaxAttempts
		if !skip {
			s.queued[m.ID] = true
		}
		s.pendingMu.Unlock()
		if skip {
			continue
		}

		select {
		case queue <- m:
			s.logger.Debug().Int64("material_id", m.ID).Msg("queued material")
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) processQueue(ctx context.Context, queue <-chan types.Material) {
	for m := range queue {
		if ctx.Err() != nil {
			continue
		}
		_, err := s.Ingest(ctx, m.FilePath, m.ID)

		s.pendingMu.Lock()
		delete(s.queued, m.ID)
		if err != nil {
			s.attempts[m.ID]++
			if s.attempts[m.ID] >= s.cfg.MaxAttempts {
				s.logger.Error().Int64("material_id", m.ID).Int("attempts", s.attempts[m.ID]).Msg("giving up on material")
			}
		} else {
			delete(s.attempts, m.ID)
		}
		s.pendingMu.Unlock()
	}
}
