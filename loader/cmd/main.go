package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"coursebot/config"
	"coursebot/loader/service"
	"coursebot/logging"
	"coursebot/model"
	"coursebot/search"
	"coursebot/store"
	"coursebot/types"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	var envFile string
	var root = &cobra.Command{
		Use:           "coursebot-loader",
		Short:         "Ingest course PDFs into the retrieval store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "optional env file")

	root.AddCommand(ingestCMD(&envFile), watchCMD(&envFile))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService(ctx context.Context, envFile string) (*service.Service, *store.PostgresStore, zerolog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	db, err := store.NewPostgresStore(ctx, cfg.Postgres.ConnString(), logger)
	if err != nil {
		return nil, nil, logger, fmt.Errorf("connect to Postgres: %w", err)
	}
	if err := db.Init(ctx, cfg.Embedding.Dimension); err != nil {
		db.Close()
		return nil, nil, logger, fmt.Errorf("create tables: %w", err)
	}

	embedder, err := model.NewEmbedder(cfg.Embedding, cfg.ModelTimeout, logger)
	if err != nil {
		db.Close()
		return nil, nil, logger, err
	}
	embeddings := search.NewEmbeddingStore(embedder, db, cfg.Embedding.Dimension, logger)

	svc, err := service.New(service.Config{
		ChunkSize:    cfg.Chunk.Size,
		ChunkOverlap: cfg.Chunk.Overlap,
		ImagesDir:    cfg.ImagesDir,
		PollInterval: cfg.Loader.PollInterval,
		MaxAttempts:  cfg.Loader.MaxAttempts,
	}, db, embeddings, logger)
	if err != nil {
		db.Close()
		return nil, nil, logger, err
	}
	return svc, db, logger, nil
}

func ingestCMD(envFile *string) *cobra.Command {
	var path string
	var ingest = &cobra.Command{
		Use:   "ingest <material-id>",
		Short: "Ingest one material now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid material id %q", args[0])
			}

			ctx := cmd.Context()
			svc, db, _, err := newService(ctx, *envFile)
			if err != nil {
				return err
			}
			defer db.Close()

			var res types.IngestResult
			if path != "" {
				res, err = svc.Ingest(ctx, path, id)
			} else {
				res, err = svc.IngestMaterial(ctx, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "material %d: %d chunks, %d images\n", id, res.ChunkCount, res.ImageCount)
			return nil
		},
	}
	ingest.Flags().StringVar(&path, "file", "", "PDF to read instead of the material's stored path")
	return ingest
}

func watchCMD(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Ingest unprocessed materials as they appear",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, db, logger, err := newService(ctx, *envFile)
			if err != nil {
				return err
			}

			svc.Run(ctx)

			logger.Info().Msg("closing database connection pool...")
			return db.Close()
		},
	}
}
