package postgres

import (
	"context"
	"fmt"

	"tgmirror/internal/mirror"
)

// Upsert inserts a message or replaces the text and attachment set of the
// message with the same source id. The whole operation runs in one
// transaction: this is the durability boundary the orchestrator commits
// the cursor against.
func (s *Store) Upsert(ctx context.Context, post mirror.ChannelPost, attachments []mirror.Attachment) (mirror.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return mirror.Message{}, classify("begin upsert", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var msgID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (source_id, text)
		VALUES ($1, $2)
		ON CONFLICT (source_id) DO UPDATE SET text = EXCLUDED.text
		RETURNING id
	`, post.SourceID, post.Text).Scan(&msgID)
	if err != nil {
		return mirror.Message{}, classify("upsert message", err)
	}

	// Replace the attachment set: release rows currently attached, then
	// claim the new set. Attachment rows themselves are immutable apart
	// from their message reference.
	if _, err := tx.Exec(ctx, `UPDATE attachments SET message_id = NULL WHERE message_id = $1`, msgID); err != nil {
		return mirror.Message{}, classify("detach attachments", err)
	}
	msg := mirror.Message{ID: msgID, SourceID: post.SourceID, Text: post.Text}
	for _, att := range attachments {
		if _, err := tx.Exec(ctx, `UPDATE attachments SET message_id = $1 WHERE id = $2`, msgID, att.ID); err != nil {
			return mirror.Message{}, classify(fmt.Sprintf("attach attachment %d", att.ID), err)
		}
		att.MessageID = msgID
		msg.Attachments = append(msg.Attachments, att)
	}

	if err := tx.Commit(ctx); err != nil {
		return mirror.Message{}, classify("commit upsert", err)
	}
	return msg, nil
}

// Search returns messages whose text contains the fragment, ordered by
// source id, each with its attachments in insertion order.
func (s *Store) Search(ctx context.Context, text string) ([]mirror.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source_id, text
		FROM messages
		WHERE text ILIKE '%' || $1 || '%'
		ORDER BY source_id
	`, text)
	if err != nil {
		return nil, classify("search messages", err)
	}
	defer rows.Close()

	var msgs []mirror.Message
	index := make(map[int64]int)
	for rows.Next() {
		var m mirror.Message
		if err := rows.Scan(&m.ID, &m.SourceID, &m.Text); err != nil {
			return nil, classify("scan message", err)
		}
		index[m.ID] = len(msgs)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate messages", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	attRows, err := s.db.Query(ctx, `
		SELECT id, source_url, storage_key, name, extension, size_bytes, message_id
		FROM attachments
		WHERE message_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, classify("load attachments", err)
	}
	defer attRows.Close()

	for attRows.Next() {
		var att mirror.Attachment
		if err := attRows.Scan(&att.ID, &att.SourceURL, &att.StorageKey, &att.Name, &att.Extension, &att.SizeBytes, &att.MessageID); err != nil {
			return nil, classify("scan attachment", err)
		}
		if i, ok := index[att.MessageID]; ok {
			msgs[i].Attachments = append(msgs[i].Attachments, att)
		}
	}
	if err := attRows.Err(); err != nil {
		return nil, classify("iterate attachments", err)
	}
	return msgs, nil
}
