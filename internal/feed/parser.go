package feed

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"tgmirror/internal/mirror"
)

// Structural markers of the public feed page. The widget markup has been
// stable for years; ids ride along in data-post attributes prefixed with
// the channel name.
const (
	selectorPostWrap  = ".tgme_widget_message_wrap.js-widget_message_wrap"
	selectorPost      = ".tgme_widget_message"
	selectorPostText  = ".tgme_widget_message_text.js-message_text"
	selectorPhotoWrap = "a.tgme_widget_message_photo_wrap"

	stylePrefix = "background-image:url('"
	styleSuffix = "')"
)

// Parser extracts channel posts from one feed page.
type Parser struct {
	channel  string
	pageSize int
	logger   *zap.Logger
}

// NewParser builds a Parser for the named channel. pageSize caps how many
// posts are taken from one page and matches the upstream fixed page size.
func NewParser(channel string, pageSize int, logger *zap.Logger) *Parser {
	if pageSize <= 0 {
		pageSize = 15
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{channel: channel, pageSize: pageSize, logger: logger}
}

// Parse returns the posts found on the page in document order. A single
// malformed post is skipped, never an error; a post without text yields an
// empty Text, which the orchestrator treats as "skip, do not persist".
func (p *Parser) Parse(page []byte) ([]mirror.ChannelPost, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	posts := make([]mirror.ChannelPost, 0, p.pageSize)
	doc.Find(selectorPostWrap).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(posts) >= p.pageSize {
			return false
		}
		post, ok := p.parsePost(sel)
		if !ok {
			return true
		}
		posts = append(posts, post)
		return true
	})
	return posts, nil
}

func (p *Parser) parsePost(sel *goquery.Selection) (mirror.ChannelPost, bool) {
	dataPost, ok := sel.Find(selectorPost).First().Attr("data-post")
	if !ok {
		p.logger.Debug("post without data-post attribute, skipping")
		return mirror.ChannelPost{}, false
	}
	idText := strings.TrimPrefix(dataPost, p.channel+"/")
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		p.logger.Debug("unparsable post id, skipping", zap.String("data_post", dataPost))
		return mirror.ChannelPost{}, false
	}

	post := mirror.ChannelPost{
		SourceID: id,
		Text:     sel.Find(selectorPostText).First().Text(),
	}
	sel.Find(selectorPhotoWrap).Each(func(_ int, photo *goquery.Selection) {
		style, _ := photo.Attr("style")
		if u := extractBackgroundURL(style); u != "" {
			post.MediaURLs = append(post.MediaURLs, u)
		}
	})
	return post, true
}

// extractBackgroundURL pulls the image URL out of an inline
// background-image style declaration.
func extractBackgroundURL(style string) string {
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if !strings.HasPrefix(decl, stylePrefix) {
			continue
		}
		u := strings.TrimPrefix(decl, stylePrefix)
		return strings.TrimSuffix(u, styleSuffix)
	}
	return ""
}
