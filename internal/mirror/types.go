// Package mirror implements the channel synchronization pipeline: cursor
// discovery, page iteration, attachment ingestion, and message upsert.
package mirror

// ChannelPost is one parsed unit of upstream content. It lives only for the
// duration of a sync pass.
type ChannelPost struct {
	SourceID  int64
	Text      string
	MediaURLs []string
}

// Message is the persisted form of a channel post, keyed by the channel's
// native post id. The message owns its ordered attachment list; attachments
// carry only a non-owning MessageID for reverse lookup.
type Message struct {
	ID          int64
	SourceID    int64
	Text        string
	Attachments []Attachment
}

// Attachment is a persisted media file. SourceURL is unique across all
// attachments and is the dedup key protecting against re-ingestion.
type Attachment struct {
	ID         int64
	MessageID  int64
	SourceURL  string
	StorageKey string
	Name       string
	Extension  string
	SizeBytes  int64
}

// Event is a progress record emitted after each committed batch. The stream
// closes after the final event; a non-empty Err marks a fatal abort and is
// always the last event.
type Event struct {
	CurrentIDs     []int64 `json:"current_ids"`
	SkippedIDs     []int64 `json:"skipped_ids"`
	FirstID        int64   `json:"first_id"`
	LastID         int64   `json:"last_id"`
	TotalPersisted int     `json:"total_persisted"`
	Err            string  `json:"error,omitempty"`
}
