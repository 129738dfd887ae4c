package mirror

import (
	"context"
	"fmt"
	"strings"
)

// MediaKind classifies an attachment by its extension.
type MediaKind string

// Supported media kinds.
const (
	KindImage   MediaKind = "img"
	KindVideo   MediaKind = "vid"
	KindUnknown MediaKind = ""
)

// maxMediaPerResult caps the media links returned per message.
const maxMediaPerResult = 10

// SearchConfig controls result rendering.
type SearchConfig struct {
	// Channel renders post links as https://t.me/<channel>/<id>.
	Channel string
	// PublicEndpoint is the public base URL of the storage bucket.
	PublicEndpoint string
	// ImageExtensions and VideoExtensions classify media kinds.
	ImageExtensions []string
	VideoExtensions []string
}

// MediaLink is one attachment rendered for a search result.
type MediaLink struct {
	URL  string    `json:"url"`
	Name string    `json:"name"`
	Kind MediaKind `json:"kind,omitempty"`
}

// SearchResult is one matched message with its media links.
type SearchResult struct {
	SourceID int64       `json:"source_id"`
	Text     string      `json:"text"`
	PostURL  string      `json:"post_url"`
	Media    []MediaLink `json:"media,omitempty"`
}

// SearchService finds mirrored messages by text and renders public links
// to their stored media.
type SearchService struct {
	messages  MessageStore
	cfg       SearchConfig
	imageExts map[string]struct{}
	videoExts map[string]struct{}
}

// NewSearchService constructs a SearchService.
func NewSearchService(messages MessageStore, cfg SearchConfig) *SearchService {
	return &SearchService{
		messages:  messages,
		cfg:       cfg,
		imageExts: toSet(cfg.ImageExtensions),
		videoExts: toSet(cfg.VideoExtensions),
	}
}

// Find returns matched messages ordered by source id.
func (s *SearchService) Find(ctx context.Context, text string) ([]SearchResult, error) {
	msgs, err := s.messages.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(msgs))
	for _, msg := range msgs {
		result := SearchResult{
			SourceID: msg.SourceID,
			Text:     msg.Text,
			PostURL:  fmt.Sprintf("https://t.me/%s/%d", s.cfg.Channel, msg.SourceID),
		}
		for i, att := range msg.Attachments {
			if i == maxMediaPerResult {
				break
			}
			result.Media = append(result.Media, MediaLink{
				URL:  strings.TrimSuffix(s.cfg.PublicEndpoint, "/") + "/" + att.StorageKey,
				Name: att.Name,
				Kind: s.classify(att.Extension),
			})
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *SearchService) classify(ext string) MediaKind {
	ext = strings.ToLower(ext)
	if _, ok := s.imageExts[ext]; ok {
		return KindImage
	}
	if _, ok := s.videoExts[ext]; ok {
		return KindVideo
	}
	return KindUnknown
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
