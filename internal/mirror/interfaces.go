package mirror

import "context"

// PageSource yields parsed posts for one feed page. Implementations handle
// transport, retry, and HTML extraction.
type PageSource interface {
	// Newest fetches the most recent page (the before=0 priming fetch).
	Newest(ctx context.Context) ([]ChannelPost, error)
	// After fetches the page starting strictly after the given post id.
	After(ctx context.Context, cursor int64) ([]ChannelPost, error)
}

// Media is a downloaded attachment body plus the name parts derived from
// its source URL.
type Media struct {
	Data []byte
	Name string
	Ext  string
}

// Downloader retrieves a media URL with the same backoff policy as page
// fetches.
type Downloader interface {
	Download(ctx context.Context, url string) (Media, error)
}

// MessageStore persists messages keyed by their native source id.
type MessageStore interface {
	// Upsert inserts a new message or replaces the text and attachment set
	// of an existing one with the same source id.
	Upsert(ctx context.Context, post ChannelPost, attachments []Attachment) (Message, error)
	// Search returns messages whose text contains the given fragment,
	// attachments included in insertion order.
	Search(ctx context.Context, text string) ([]Message, error)
}

// AttachmentStore persists attachment rows, unique by source URL.
type AttachmentStore interface {
	FindBySourceURL(ctx context.Context, url string) (Attachment, bool, error)
	Create(ctx context.Context, att Attachment) (Attachment, error)
}

// CursorStore is a durable named key/value table. Set must be durable
// before it returns; the orchestrator relies on that for resumability.
type CursorStore interface {
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
}

// BlobStore writes attachment bodies to object storage.
type BlobStore interface {
	// EnsureBucket creates the target bucket if missing. Idempotent.
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key, contentType string, data []byte) error
	// Delete removes an object, succeeding if the key is already absent.
	Delete(ctx context.Context, key string) error
}

// KeyGenerator produces globally unique, content-free storage keys.
type KeyGenerator interface {
	NewKey() (string, error)
}
