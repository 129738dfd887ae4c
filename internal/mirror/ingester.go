package mirror

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"

	"tgmirror/internal/metrics"
)

// IngesterConfig controls attachment ingestion.
type IngesterConfig struct {
	MaxSizeBytes int64
}

// Ingester downloads a media URL, enforces the size gate, uploads the body
// to object storage under a unique key, and records the attachment row.
// Ingestion is idempotent per source URL: a URL that already has a row is
// returned as-is without touching the network.
type Ingester struct {
	downloader  Downloader
	attachments AttachmentStore
	blobs       BlobStore
	keys        KeyGenerator
	cfg         IngesterConfig
	logger      *zap.Logger
}

// NewIngester constructs an Ingester.
func NewIngester(
	downloader Downloader,
	attachments AttachmentStore,
	blobs BlobStore,
	keys KeyGenerator,
	cfg IngesterConfig,
	logger *zap.Logger,
) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		downloader:  downloader,
		attachments: attachments,
		blobs:       blobs,
		keys:        keys,
		cfg:         cfg,
		logger:      logger,
	}
}

// Ingest returns the attachment descriptor for sourceURL, creating it on
// first sight. Errors are categorized: ErrFileTooLarge is recoverable per
// attachment, ErrStorageUnavailable aborts the pass.
func (i *Ingester) Ingest(ctx context.Context, sourceURL string) (Attachment, error) {
	existing, ok, err := i.attachments.FindBySourceURL(ctx, sourceURL)
	if err != nil {
		return Attachment{}, err
	}
	if ok {
		metrics.RecordAttachmentDeduped()
		i.logger.Debug("attachment already ingested", zap.String("source_url", sourceURL))
		return existing, nil
	}

	media, err := i.downloader.Download(ctx, sourceURL)
	if err != nil {
		return Attachment{}, fmt.Errorf("download attachment: %w", err)
	}

	size := int64(len(media.Data))
	if size > i.cfg.MaxSizeBytes {
		metrics.RecordAttachmentOversize()
		return Attachment{}, fmt.Errorf("%s is %d bytes, limit %d: %w",
			sourceURL, size, i.cfg.MaxSizeBytes, ErrFileTooLarge)
	}

	key, err := i.keys.NewKey()
	if err != nil {
		return Attachment{}, fmt.Errorf("generate storage key: %w", err)
	}
	ext := strings.ToLower(media.Ext)
	storageKey := key
	if ext != "" {
		storageKey = key + "." + ext
	}

	if err := i.blobs.EnsureBucket(ctx); err != nil {
		return Attachment{}, err
	}
	if err := i.blobs.Put(ctx, storageKey, mime.TypeByExtension("."+ext), media.Data); err != nil {
		return Attachment{}, err
	}

	att, err := i.attachments.Create(ctx, Attachment{
		SourceURL:  sourceURL,
		StorageKey: storageKey,
		Name:       media.Name,
		Extension:  ext,
		SizeBytes:  size,
	})
	if err != nil {
		return Attachment{}, err
	}
	metrics.RecordAttachmentIngested()
	i.logger.Debug("attachment ingested",
		zap.String("source_url", sourceURL),
		zap.String("storage_key", storageKey),
		zap.Int64("size_bytes", size),
	)
	return att, nil
}
