package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coursebot/app/agent"
	"coursebot/app/server"
	"coursebot/config"
	"coursebot/loader/service"
	"coursebot/logging"
	"coursebot/metrics"
	"coursebot/model"
	"coursebot/search"
	"coursebot/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var envFile string
	var root = &cobra.Command{
		Use:           "coursebot",
		Short:         "Course material question answering",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "optional env file")

	root.AddCommand(serveCMD(&envFile), askCMD(&envFile), initDBCMD(&envFile))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *store.PostgresStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	pipeline *agent.Pipeline
	loader   *service.Service
}

func setup(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	db, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to Postgres: %w", err)
	}

	embedder, err := model.NewEmbedder(cfg.Embedding, cfg.ModelTimeout, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	generator, err := model.NewGenerator(cfg.LLM, cfg.ModelTimeout, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	var synthOpts []agent.SynthesizerOption
	if tc, err := model.NewTokenCounter(); err != nil {
		logger.Warn().Err(err).Msg("prompt token counting disabled")
	} else {
		synthOpts = append(synthOpts, agent.WithTokenCounter(tc))
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	embeddings := search.NewEmbeddingStore(embedder, db, cfg.Embedding.Dimension, logger)
	engine := search.NewEngine(embeddings, db, logger)
	pipeline := agent.NewPipeline(engine, agent.NewSynthesizer(generator, logger, synthOpts...), m, logger)

	loader, err := service.New(service.Config{
		ChunkSize:    cfg.Chunk.Size,
		ChunkOverlap: cfg.Chunk.Overlap,
		ImagesDir:    cfg.ImagesDir,
		PollInterval: cfg.Loader.PollInterval,
		MaxAttempts:  cfg.Loader.MaxAttempts,
	}, db, embeddings, logger, service.WithMetrics(m))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    db,
		registry: registry,
		metrics:  m,
		pipeline: pipeline,
		loader:   loader,
	}, nil
}

func serveCMD(envFile *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.store.Close()

			if err := a.store.Init(ctx, a.cfg.Embedding.Dimension); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}

			addr := a.cfg.ServerAddr
			if serveAddr != "" {
				addr = serveAddr
			}
			s := server.NewServer(addr, server.Deps{
				Pipeline:    a.pipeline,
				Ingester:    a.loader,
				Subjects:    a.store,
				DB:          a.store,
				Gatherer:    a.registry,
				ImagesDir:   a.cfg.ImagesDir,
				DefaultTopK: a.cfg.Retrieval.TopK,
			}, a.logger)

			errCh := make(chan error, 1)
			go func() { errCh <- s.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				a.logger.Info().Msg("received shutdown signal, shutting down server...")
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Stop(shutdownCtx)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides SERVER_ADDR)")
	return serve
}

func askCMD(envFile *string) *cobra.Command {
	var subject int64
	var topK int
	var ask = &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, *envFile)
			if err != nil {
				return err
			}
			defer a.store.Close()

			var subjectID *int64
			if subject > 0 {
				subjectID = &subject
			}
			if topK <= 0 {
				topK = a.cfg.Retrieval.TopK
			}
			res := a.pipeline.Answer(ctx, args[0], subjectID, topK)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			fmt.Fprintf(out, "\nconfidence: %.2f\n", res.Confidence)
			for _, src := range res.Sources {
				fmt.Fprintf(out, "- %s, page %d\n", src.Material, src.Page)
			}
			return nil
		},
	}
	ask.Flags().Int64Var(&subject, "subject", 0, "restrict retrieval to one subject id")
	ask.Flags().IntVar(&topK, "top-k", 0, "number of chunks to retrieve")
	return ask
}

func initDBCMD(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			db, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString(), logger)
			if err != nil {
				return fmt.Errorf("connect to Postgres: %w", err)
			}
			defer db.Close()

			if err := db.Init(ctx, cfg.Embedding.Dimension); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
			logger.Info().Int("dimension", cfg.Embedding.Dimension).Msg("schema is ready")
			return nil
		},
	}
}
