package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"capturevault/internal/blob"
	"capturevault/internal/bot"
	"capturevault/internal/capture"
	"capturevault/internal/config"
	"capturevault/internal/embedding"
	"capturevault/internal/enrich"
	"capturevault/internal/httpapi"
	"capturevault/internal/scraper"
	"capturevault/internal/search"
	"capturevault/internal/storage"
	"capturevault/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when a token is configured, the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	log := newLogger(os.Stdout, cfg.Level())
	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"http_addr":     cfg.HTTPAddr,
		"bot_enabled":   cfg.BotEnabled(),
	}).Info("Configuration loaded successfully")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info("Closing database...")
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}()
	go repo.RunGC(ctx, cfg.BadgerGCInterval)

	// Enrichment
	fetcher := scraper.NewHTTPFetcher(fetchOptions(cfg), log)
	enricher, err := enrich.NewEnricher(fetcher, repo, log,
		enrich.WithWorkers(cfg.EnrichWorkers),
		enrich.WithTimeout(cfg.EnrichTimeout),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := enricher.Release(shutdownTimeout); err != nil {
			log.WithError(err).Warn("Enrichment jobs still running at shutdown")
		}
	}()

	searchOpts := []search.Option{}
	captureOpts := []capture.Option{capture.WithEnricher(enricher)}

	if cfg.BlobBaseURL != "" {
		resolver := blob.PrefixResolver{BaseURL: cfg.BlobBaseURL}
		searchOpts = append(searchOpts, search.WithBlobResolver(resolver))
		captureOpts = append(captureOpts, capture.WithBlobResolver(resolver))
	}

	embCfg := embeddingConfig(cfg)
	if embCfg.Enabled() {
		client, err := embedding.NewClient(embCfg, log)
		if err != nil {
			return err
		}
		searchOpts = append(searchOpts, search.WithEmbedder(client))
		captureOpts = append(captureOpts, capture.WithCaptioner(client))
	} else {
		log.Warn("No embedding endpoint configured, search falls back to text matching")
	}

	if cfg.QdrantURL != "" {
		index, err := openIndex(ctx, cfg, log)
		if err != nil {
			// Semantic search still works by scanning stored embeddings.
			log.WithError(err).Warn("Vector index unavailable, continuing without it")
		} else {
			defer index.Close()
			searchOpts = append(searchOpts, search.WithIndex(index))
			captureOpts = append(captureOpts, capture.WithIndex(index))
		}
	}

	searcher := search.NewSearcher(repo, log, searchOpts...)
	captures := capture.NewService(repo, log, captureOpts...)

	// HTTP API
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Searcher: searcher,
			Captures: captures,
			Logger:   log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Bot Handler
	if cfg.BotEnabled() {
		botHandler, err := bot.NewHandler(cfg, captures, searcher, log)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot handler: %w", err)
		}
		go botHandler.Start(ctx)
	}

	log.Info("capturevault is running. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("HTTP server failed")
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("Shutting down capturevault...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("capturevault shut down gracefully.")
	return nil
}

func openIndex(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*vectorstore.QdrantStore, error) {
	if cfg.EmbeddingDimensions <= 0 {
		return nil, errors.New("EMBEDDING_DIMENSIONS is required for the vector index")
	}
	index, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection, log)
	if err != nil {
		return nil, err
	}
	if err := index.EnsureCollection(ctx, cfg.EmbeddingDimensions); err != nil {
		index.Close()
		return nil, err
	}
	return index, nil
}

func fetchOptions(cfg config.Config) scraper.Options {
	return scraper.Options{
		Timeout:       cfg.FetchTimeout,
		RatePerSecond: cfg.FetchRate,
		Burst:         cfg.FetchBurst,
		MaxBodyBytes:  cfg.FetchMaxBytes,
		UserAgent:     cfg.FetchUserAgent,
	}
}

func embeddingConfig(cfg config.Config) embedding.Config {
	return embedding.Config{
		Host:           cfg.EmbeddingHost,
		APIKey:         cfg.EmbeddingAPIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		CaptionModel:   cfg.CaptionModel,
		Dimensions:     cfg.EmbeddingDimensions,
		Timeout:        cfg.EmbeddingTimeout,
	}
}
