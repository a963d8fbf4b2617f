// Package feed fetches and parses RSS/Atom feeds into domain types.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/feedhook/pkg/domain"
)

// errRejected marks fetch failures no retry can fix, like 404 or 403
var errRejected = errors.New("feed request rejected")

// Parser parses RSS/Atom feeds
type Parser struct {
	client    *http.Client
	userAgent string
}

// NewParser creates a new feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Parse fetches and parses a feed from the given URL. Transient failures
// (5xx, 429, transport errors) are retried with backoff, anything else
// fails immediately.
func (p *Parser) Parse(ctx context.Context, urlStr string) (*domain.ParsedFeed, error) {
	data, err := p.fetch(ctx, urlStr)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	result := &domain.ParsedFeed{
		Title: feed.Title,
		Link:  feed.Link,
		Items: make([]domain.ParsedItem, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		parsedItem := domain.ParsedItem{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Media:       mediaItems(item),
		}

		// set GUID with fallbacks, entries without any id get a synthetic one
		switch {
		case item.GUID != "":
			parsedItem.GUID = item.GUID
		case item.Link != "":
			parsedItem.GUID = item.Link
		default:
			parsedItem.GUID = fmt.Sprintf("%s-%s", feed.Title, item.Title)
		}

		// set published time
		if item.PublishedParsed != nil {
			parsedItem.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			parsedItem.Published = *item.UpdatedParsed
		}

		result.Items = append(result.Items, parsedItem)
	}

	return result, nil
}

// fetch retrieves the feed body, retrying transient failures
func (p *Parser) fetch(ctx context.Context, urlStr string) ([]byte, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	var data []byte
	retrier := repeater.NewBackoff(3, time.Second, repeater.WithMaxDelay(5*time.Second))
	err = retrier.Do(ctx, func() error {
		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch URL: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		default:
			return fmt.Errorf("%w: status code %d", errRejected, resp.StatusCode)
		}

		if data, err = io.ReadAll(resp.Body); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	}, errRejected)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// mediaItems extracts media rss content elements, gofeed keeps them in the
// item's extension tree
func mediaItems(item *gofeed.Item) []domain.MediaItem {
	media, ok := item.Extensions["media"]
	if !ok {
		return nil
	}

	var res []domain.MediaItem
	for _, ext := range media["content"] {
		m := domain.MediaItem{URL: ext.Attrs["url"], Medium: ext.Attrs["medium"]}
		if h, err := strconv.Atoi(ext.Attrs["height"]); err == nil {
			m.Height = h
		}
		if w, err := strconv.Atoi(ext.Attrs["width"]); err == nil {
			m.Width = w
		}
		res = append(res, m)
	}
	return res
}
