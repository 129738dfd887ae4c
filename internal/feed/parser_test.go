package feed

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wrapPage(posts ...string) []byte {
	return []byte(`<html><body><main class="tgme_main">` + strings.Join(posts, "\n") + `</main></body></html>`)
}

func textPost(channel string, id int64, text string) string {
	return fmt.Sprintf(`
<div class="tgme_widget_message_wrap js-widget_message_wrap">
  <div class="tgme_widget_message" data-post="%s/%d">
    <div class="tgme_widget_message_text js-message_text">%s</div>
  </div>
</div>`, channel, id, text)
}

func photoPost(channel string, id int64, text string, urls ...string) string {
	var photos strings.Builder
	for _, u := range urls {
		fmt.Fprintf(&photos,
			`<a class="tgme_widget_message_photo_wrap" style="width:100%%;background-image:url('%s')"></a>`, u)
	}
	body := photos.String()
	if text != "" {
		body += fmt.Sprintf(`<div class="tgme_widget_message_text js-message_text">%s</div>`, text)
	}
	return fmt.Sprintf(`
<div class="tgme_widget_message_wrap js-widget_message_wrap">
  <div class="tgme_widget_message" data-post="%s/%d">%s</div>
</div>`, channel, id, body)
}

func TestParserParse(t *testing.T) {
	t.Parallel()

	p := NewParser("newschan", 15, nil)
	page := wrapPage(
		textPost("newschan", 101, "first post"),
		photoPost("newschan", 102, "with media",
			"https://cdn.example.com/a.jpg",
			"https://cdn.example.com/b.jpg"),
		photoPost("newschan", 103, "", "https://cdn.example.com/c.jpg"),
	)

	posts, err := p.Parse(page)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.EqualValues(t, 101, posts[0].SourceID)
	assert.Equal(t, "first post", posts[0].Text)
	assert.Empty(t, posts[0].MediaURLs)

	assert.EqualValues(t, 102, posts[1].SourceID)
	assert.Equal(t, []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.jpg",
	}, posts[1].MediaURLs)

	// A media-only post surfaces with empty text; skipping is the
	// orchestrator's call, not the parser's.
	assert.EqualValues(t, 103, posts[2].SourceID)
	assert.Empty(t, posts[2].Text)
	assert.Equal(t, []string{"https://cdn.example.com/c.jpg"}, posts[2].MediaURLs)
}

func TestParserSkipsMalformedPosts(t *testing.T) {
	t.Parallel()

	p := NewParser("newschan", 15, nil)
	page := wrapPage(
		`<div class="tgme_widget_message_wrap js-widget_message_wrap">
		   <div class="tgme_widget_message"></div>
		 </div>`,
		strings.ReplaceAll(textPost("newschan", 0, "bad id"), `data-post="newschan/0"`, `data-post="newschan/pinned"`),
		textPost("newschan", 104, "still parsed"),
	)

	posts, err := p.Parse(page)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.EqualValues(t, 104, posts[0].SourceID)
}

func TestParserCapsAtPageSize(t *testing.T) {
	t.Parallel()

	var raw []string
	for id := int64(1); id <= 20; id++ {
		raw = append(raw, textPost("newschan", id, "post"))
	}
	p := NewParser("newschan", 15, nil)
	posts, err := p.Parse(wrapPage(raw...))
	require.NoError(t, err)
	assert.Len(t, posts, 15)
	assert.EqualValues(t, 1, posts[0].SourceID)
	assert.EqualValues(t, 15, posts[14].SourceID)
}

func TestParserEmptyPage(t *testing.T) {
	t.Parallel()

	p := NewParser("newschan", 15, nil)
	posts, err := p.Parse(wrapPage())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestExtractBackgroundURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		style string
		want  string
	}{
		{
			"single declaration",
			"background-image:url('https://cdn.example.com/x.jpg')",
			"https://cdn.example.com/x.jpg",
		},
		{
			"among other declarations",
			"width:100%; background-image:url('https://cdn.example.com/y.jpg'); height:50px",
			"https://cdn.example.com/y.jpg",
		},
		{"no image", "width:100%;height:50px", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, extractBackgroundURL(tt.style))
		})
	}
}
