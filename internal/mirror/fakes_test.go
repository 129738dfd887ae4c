package mirror

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Shared in-package fakes for ingester, orchestrator, and search tests.

type fakeSource struct {
	newest  []ChannelPost
	pages   map[int64][]ChannelPost
	afters  []int64
	pageErr error
}

func (f *fakeSource) Newest(context.Context) ([]ChannelPost, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.newest, nil
}

func (f *fakeSource) After(_ context.Context, cursor int64) ([]ChannelPost, error) {
	f.afters = append(f.afters, cursor)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.pages[cursor], nil
}

type fakeMessageStore struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]Message // keyed by source id
	upsertErr func(post ChannelPost) error
	searchErr error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[int64]Message)}
}

func (f *fakeMessageStore) Upsert(_ context.Context, post ChannelPost, attachments []Attachment) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		if err := f.upsertErr(post); err != nil {
			return Message{}, err
		}
	}
	msg, ok := f.messages[post.SourceID]
	if !ok {
		f.nextID++
		msg = Message{ID: f.nextID, SourceID: post.SourceID}
	}
	msg.Text = post.Text
	msg.Attachments = attachments
	f.messages[post.SourceID] = msg
	return msg, nil
}

func (f *fakeMessageStore) Search(_ context.Context, text string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []Message
	for _, msg := range f.messages {
		if strings.Contains(msg.Text, text) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out, nil
}

func (f *fakeMessageStore) all() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

type fakeAttachmentStore struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[string]Attachment // keyed by source url
	findErr error
	crtErr  error
}

func newFakeAttachmentStore() *fakeAttachmentStore {
	return &fakeAttachmentStore{rows: make(map[string]Attachment)}
}

func (f *fakeAttachmentStore) FindBySourceURL(_ context.Context, url string) (Attachment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return Attachment{}, false, f.findErr
	}
	att, ok := f.rows[url]
	return att, ok, nil
}

func (f *fakeAttachmentStore) Create(_ context.Context, att Attachment) (Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crtErr != nil {
		return Attachment{}, f.crtErr
	}
	if _, ok := f.rows[att.SourceURL]; ok {
		return Attachment{}, ErrUnexpectedConflict
	}
	f.nextID++
	att.ID = f.nextID
	f.rows[att.SourceURL] = att
	return att, nil
}

type fakeCursorStore struct {
	mu     sync.Mutex
	vars   map[string]string
	sets   []string
	setErr error
}

func newFakeCursorStore() *fakeCursorStore {
	return &fakeCursorStore{vars: make(map[string]string)}
}

func (f *fakeCursorStore) Get(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[name]
	return v, ok, nil
}

func (f *fakeCursorStore) Set(_ context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.vars[name] = value
	f.sets = append(f.sets, value)
	return nil
}

type fakeBlobStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	types       map[string]string
	ensureCalls int
	ensureErr   error
	putErr      error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeBlobStore) EnsureBucket(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeBlobStore) Put(_ context.Context, key, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeDownloader struct {
	mu       sync.Mutex
	media    map[string]Media
	calls    []string
	download func(url string) (Media, error)
}

func newFakeDownloader() *fakeDownloader {
	return &fakeDownloader{media: make(map[string]Media)}
}

func (f *fakeDownloader) Download(_ context.Context, url string) (Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.download != nil {
		return f.download(url)
	}
	m, ok := f.media[url]
	if !ok {
		return Media{}, fmt.Errorf("no media registered for %s", url)
	}
	return m, nil
}

type stubKeys struct {
	mu   sync.Mutex
	next int
}

func (s *stubKeys) NewKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("key%04d", s.next), nil
}
