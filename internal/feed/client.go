package feed

import (
	"context"
	"fmt"
	"strings"

	"tgmirror/internal/mirror"
)

// Client composes a Fetcher and a Parser into a mirror.PageSource. Page
// URLs take either ?after= or ?before=, never both; before=0 addresses the
// newest page.
type Client struct {
	fetcher *Fetcher
	parser  *Parser
	pageURL string
}

// NewClient builds a Client for the channel hosted under baseURL
// (e.g. "https://t.me/s").
func NewClient(fetcher *Fetcher, parser *Parser, baseURL, channel string) *Client {
	return &Client{
		fetcher: fetcher,
		parser:  parser,
		pageURL: strings.TrimSuffix(baseURL, "/") + "/" + channel,
	}
}

// Newest fetches the most recent page.
func (c *Client) Newest(ctx context.Context) ([]mirror.ChannelPost, error) {
	return c.page(ctx, c.pageURL+"?before=0")
}

// After fetches the page starting strictly after the given post id.
func (c *Client) After(ctx context.Context, cursor int64) ([]mirror.ChannelPost, error) {
	return c.page(ctx, fmt.Sprintf("%s?after=%d", c.pageURL, cursor))
}

func (c *Client) page(ctx context.Context, url string) ([]mirror.ChannelPost, error) {
	body, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	posts, err := c.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return posts, nil
}
