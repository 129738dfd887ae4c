package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tgmirror/internal/mirror"
)

// FindBySourceURL looks up an attachment by its dedup key.
func (s *Store) FindBySourceURL(ctx context.Context, url string) (mirror.Attachment, bool, error) {
	var att mirror.Attachment
	var messageID *int64
	err := s.db.QueryRow(ctx, `
		SELECT id, source_url, storage_key, name, extension, size_bytes, message_id
		FROM attachments
		WHERE source_url = $1
	`, url).Scan(&att.ID, &att.SourceURL, &att.StorageKey, &att.Name, &att.Extension, &att.SizeBytes, &messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return mirror.Attachment{}, false, nil
	}
	if err != nil {
		return mirror.Attachment{}, false, classify("find attachment", err)
	}
	if messageID != nil {
		att.MessageID = *messageID
	}
	return att, true, nil
}

// Create inserts a new attachment row. The caller must have checked the
// source URL first; a conflict here means another pass is racing and is
// reported as fatal.
func (s *Store) Create(ctx context.Context, att mirror.Attachment) (mirror.Attachment, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO attachments (source_url, storage_key, name, extension, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, att.SourceURL, att.StorageKey, att.Name, att.Extension, att.SizeBytes).Scan(&att.ID)
	if err != nil {
		return mirror.Attachment{}, classify("create attachment", err)
	}
	return att, nil
}
