// Package app assembles the service from configuration: stores, feed
// client, ingester, orchestrator, and search.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"tgmirror/internal/config"
	"tgmirror/internal/feed"
	uuidgen "tgmirror/internal/id/uuid"
	"tgmirror/internal/logging"
	"tgmirror/internal/metrics"
	"tgmirror/internal/mirror"
	"tgmirror/internal/storage/gcs"
	"tgmirror/internal/storage/memory"
	"tgmirror/internal/storage/postgres"
)

// App holds the wired service components.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Orchestrator *mirror.Orchestrator
	Search       *mirror.SearchService

	pg        *postgres.Store
	gcsClient *gstorage.Client
}

// New wires every component from cfg. With an empty db.dsn the relational
// stores run in memory; the memory storage provider likewise keeps blobs
// in process. Both are for local runs and tests, production uses Postgres
// and GCS.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	var (
		messages    mirror.MessageStore
		attachments mirror.AttachmentStore
		cursor      mirror.CursorStore
	)
	if cfg.DB.DSN != "" {
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pg = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		messages, attachments, cursor = store, store, store
	} else {
		logger.Warn("db.dsn not set, using in-memory stores")
		mem := memory.NewStore()
		messages, attachments, cursor = mem, mem, mem
	}

	var blobs mirror.BlobStore
	switch cfg.Storage.Provider {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("build storage client: %w", err)
		}
		a.gcsClient = client
		blobs, err = gcs.New(client, gcs.Config{
			Bucket:    cfg.Storage.Bucket,
			ProjectID: cfg.Storage.ProjectID,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	case "memory":
		blobs = memory.NewBlobStore()
	default:
		a.Close()
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		a.Close()
		return nil, err
	}

	fetcher := feed.NewFetcher(feed.FetcherConfig{
		MaxRetries:  cfg.HTTP.MaxRetries,
		BackoffBase: cfg.BackoffBase(),
		Timeout:     cfg.FetchTimeout(),
		UserAgent:   cfg.HTTP.UserAgent,
	}, logger)
	parser := feed.NewParser(cfg.Channel.Name, cfg.Sync.PageSize, logger)
	client := feed.NewClient(fetcher, parser, cfg.Channel.BaseURL, cfg.Channel.Name)

	ingester := mirror.NewIngester(
		fetcher,
		attachments,
		blobs,
		uuidgen.NewGenerator(),
		mirror.IngesterConfig{MaxSizeBytes: cfg.Attachment.MaxSizeBytes},
		logger,
	)

	a.Orchestrator = mirror.NewOrchestrator(client, ingester, messages, cursor, mirror.OrchestratorConfig{
		BoundMargin:           cfg.Sync.BoundMargin,
		PacingMin:             secondsDuration(cfg.Sync.PacingMinSec),
		PacingMax:             secondsDuration(cfg.Sync.PacingMaxSec),
		AttachmentConcurrency: cfg.Attachment.Concurrency,
		ProgressBuffer:        cfg.Sync.ProgressBufSize,
	}, logger)

	a.Search = mirror.NewSearchService(messages, mirror.SearchConfig{
		Channel:         cfg.Channel.Name,
		PublicEndpoint:  publicEndpoint(cfg.Storage),
		ImageExtensions: cfg.Attachment.ImageExtensions,
		VideoExtensions: cfg.Attachment.VideoExtensions,
	})

	return a, nil
}

// Close releases connections; safe on a partially constructed App.
func (a *App) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.gcsClient != nil {
		_ = a.gcsClient.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// publicEndpoint derives the public media base URL. GCS buckets with
// public-read objects are reachable through storage.googleapis.com unless
// an explicit endpoint (CDN, proxy) overrides it.
func publicEndpoint(cfg config.StorageConfig) string {
	if cfg.PublicEndpoint != "" {
		return strings.TrimSuffix(cfg.PublicEndpoint, "/")
	}
	if cfg.Provider == "gcs" {
		return "https://storage.googleapis.com/" + cfg.Bucket
	}
	return ""
}

func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
