package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"tgmirror/internal/mirror"
)

// Store implements the message, attachment, and cursor store interfaces in
// memory, mirroring the Postgres semantics closely enough for orchestrator
// tests and dry runs.
type Store struct {
	mu          sync.Mutex
	nextMsgID   int64
	nextAttID   int64
	messages    map[int64]*mirror.Message // keyed by source id
	attachments map[string]*mirror.Attachment
	vars        map[string]string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		messages:    make(map[int64]*mirror.Message),
		attachments: make(map[string]*mirror.Attachment),
		vars:        make(map[string]string),
	}
}

// Upsert inserts or replaces the message with the post's source id.
func (s *Store) Upsert(_ context.Context, post mirror.ChannelPost, attachments []mirror.Attachment) (mirror.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[post.SourceID]
	if !ok {
		s.nextMsgID++
		msg = &mirror.Message{ID: s.nextMsgID, SourceID: post.SourceID}
		s.messages[post.SourceID] = msg
	}
	msg.Text = post.Text
	msg.Attachments = nil
	for _, att := range attachments {
		att.MessageID = msg.ID
		if stored, ok := s.attachments[att.SourceURL]; ok {
			stored.MessageID = msg.ID
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	return *msg, nil
}

// Search returns messages containing text, ordered by source id.
func (s *Store) Search(_ context.Context, text string) ([]mirror.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(text)
	var found []mirror.Message
	for _, msg := range s.messages {
		if strings.Contains(strings.ToLower(msg.Text), needle) {
			found = append(found, *msg)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].SourceID < found[j].SourceID })
	return found, nil
}

// FindBySourceURL looks up an attachment by its dedup key.
func (s *Store) FindBySourceURL(_ context.Context, url string) (mirror.Attachment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	att, ok := s.attachments[url]
	if !ok {
		return mirror.Attachment{}, false, nil
	}
	return *att, true, nil
}

// Create inserts a new attachment row.
func (s *Store) Create(_ context.Context, att mirror.Attachment) (mirror.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[att.SourceURL]; ok {
		return mirror.Attachment{}, mirror.ErrUnexpectedConflict
	}
	s.nextAttID++
	att.ID = s.nextAttID
	stored := att
	s.attachments[att.SourceURL] = &stored
	return att, nil
}

// Get reads a named variable.
func (s *Store) Get(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok, nil
}

// Set writes a named variable.
func (s *Store) Set(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
	return nil
}

// Messages returns all persisted messages ordered by source id, for test
// assertions.
func (s *Store) Messages() []mirror.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mirror.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// AttachmentCount reports how many attachment rows exist.
func (s *Store) AttachmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attachments)
}
