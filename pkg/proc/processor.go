// Package proc runs the delivery pipeline. It walks the configured feeds,
// builds a webhook payload for every entry not delivered yet and records the
// outcome in the ledger. Feeds and entries are processed strictly one at a
// time, the ledger is owned by the caller and flushed once per run.
package proc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedhook/pkg/content"
	"github.com/umputun/feedhook/pkg/domain"
	"github.com/umputun/feedhook/pkg/ledger"
	"github.com/umputun/feedhook/pkg/notify"
)

//go:generate moq -out mocks/parser.go -pkg mocks -skip-ensure -fmt goimports . Parser
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Parser fetches and parses a feed by URL
type Parser interface {
	Parse(ctx context.Context, url string) (*domain.ParsedFeed, error)
}

// Notifier posts a message to a webhook
type Notifier interface {
	Send(ctx context.Context, webhookURL string, msg notify.Message) error
}

// Processor delivers new feed entries to a single webhook
type Processor struct {
	parser    Parser
	notifier  Notifier
	extractor *content.Extractor
	webhook   string
	dryRun    bool
	populate  bool
	maxAge    time.Duration
	now       func() time.Time
}

// Config holds processor dependencies and run modes
type Config struct {
	Parser   Parser
	Notifier Notifier
	Webhook  string
	DryRun   bool          // build and log payloads without delivering or saving
	Populate bool          // mark entries sent without delivering, for first-run bootstrap
	MaxAge   time.Duration // retention window for ledger records, zero keeps them forever
	Now      func() time.Time
}

// NewProcessor creates a processor with the provided configuration
func NewProcessor(cfg Config) *Processor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Processor{
		parser:    cfg.Parser,
		notifier:  cfg.Notifier,
		extractor: content.NewExtractor(),
		webhook:   cfg.Webhook,
		dryRun:    cfg.DryRun,
		populate:  cfg.Populate,
		maxAge:    cfg.MaxAge,
		now:       cfg.Now,
	}
}

// Result aggregates counters for a single run over all feeds of a group
type Result struct {
	Feeds      int `json:"feeds"`
	FeedErrors int `json:"feed_errors"`
	Entries    int `json:"entries"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Populated  int `json:"populated"`
	DryRun     int `json:"dry_run"`
	Pruned     int `json:"pruned"`
}

// outcome of a single entry going through the pipeline
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePopulated
	outcomeDelivered
	outcomeFailed
	outcomeDryRun
)

// Run processes all feeds once, prunes stale ledger records and saves the
// ledger. A failed save is fatal for the run, everything else is logged and
// contained. In dry-run mode the ledger file is left untouched.
func (p *Processor) Run(ctx context.Context, feeds []domain.Feed, led *ledger.Ledger) (Result, error) {
	res := Result{Feeds: len(feeds)}

	for _, feed := range feeds {
		p.processFeed(ctx, feed, led, &res)
	}

	if p.maxAge > 0 {
		cutoff := p.now().Add(-p.maxAge)
		res.Pruned = led.Prune(cutoff)
		if res.Pruned > 0 {
			lgr.Printf("[INFO] pruned %d stale ledger records", res.Pruned)
		}
	}

	lgr.Printf("[INFO] run completed: %d feeds, %d entries, %d delivered, %d failed, %d skipped",
		res.Feeds, res.Entries, res.Delivered, res.Failed, res.Skipped)

	if p.dryRun {
		lgr.Printf("[INFO] dry run, ledger not saved")
		return res, nil
	}
	if err := led.Save(); err != nil {
		return res, fmt.Errorf("save ledger: %w", err)
	}
	return res, nil
}

// processFeed parses one feed and pushes its entries through the pipeline.
// Parse failures skip the feed without touching the rest of the run.
func (p *Processor) processFeed(ctx context.Context, feed domain.Feed, led *ledger.Ledger, res *Result) {
	parsed, err := p.parser.Parse(ctx, feed.URL)
	if err != nil {
		lgr.Printf("[WARN] failed to parse feed %s: %v", feed.URL, err)
		res.FeedErrors++
		return
	}

	lgr.Printf("[DEBUG] processing %d entries from %s", len(parsed.Items), feed.URL)
	for _, entry := range parsed.Items {
		res.Entries++
		switch p.processEntry(ctx, feed, parsed, entry, led) {
		case outcomeDelivered:
			res.Delivered++
		case outcomeFailed:
			res.Failed++
		case outcomeSkipped:
			res.Skipped++
		case outcomePopulated:
			res.Populated++
		case outcomeDryRun:
			res.DryRun++
		}
	}
}

// processEntry runs the per-entry state machine. The ledger record is
// refreshed on every observation, delivery happens at most once per entry.
func (p *Processor) processEntry(ctx context.Context, feed domain.Feed, parsed *domain.ParsedFeed, entry domain.ParsedItem, led *ledger.Ledger) outcome {
	rec := led.Upsert(entry.GUID)
	rec.Touch(entry.Link, p.now())

	if rec.IsSent() {
		return outcomeSkipped
	}

	if p.populate {
		rec.MarkPopulated()
		lgr.Printf("[DEBUG] populated %s without delivery", entry.GUID)
		return outcomePopulated
	}

	msg := p.buildMessage(feed, parsed, entry)

	if p.dryRun {
		data, err := json.Marshal(msg)
		if err != nil {
			lgr.Printf("[WARN] failed to marshal payload for %s: %v", entry.GUID, err)
			return outcomeFailed
		}
		lgr.Printf("[INFO] dry run, would deliver %s: %s", entry.GUID, data)
		return outcomeDryRun
	}

	if err := p.notifier.Send(ctx, p.webhook, msg); err != nil {
		var statusErr *notify.StatusError
		if errors.As(err, &statusErr) {
			rec.AddError(statusErr.StatusCode, statusErr.Body, p.now())
			lgr.Printf("[WARN] webhook rejected %s (%s): status %d", entry.GUID, entry.Link, statusErr.StatusCode)
			return outcomeFailed
		}
		rec.SetException(err, p.now())
		lgr.Printf("[WARN] failed to deliver %s (%s): %v", entry.GUID, entry.Link, err)
		return outcomeFailed
	}

	rec.MarkDelivered(p.now())
	lgr.Printf("[INFO] delivered %s (%s)", entry.GUID, entry.Link)
	return outcomeDelivered
}

// buildMessage assembles the webhook payload for one entry
func (p *Processor) buildMessage(feed domain.Feed, parsed *domain.ParsedFeed, entry domain.ParsedItem) notify.Message {
	text, images := p.extractor.Extract(entry)

	embed := notify.Embed{
		Type: "rich",
		URL:  entry.Link,
		Author: notify.EmbedAuthor{
			URL:  parsed.Link,
			Name: p.extractor.Markdown(parsed.Title),
		},
		Description: fmt.Sprintf("## [%s](%s)", p.extractor.Markdown(entry.Title), entry.Link),
	}
	if feed.IncludeSummary && text != "" {
		embed.Description += fmt.Sprintf("\n%s\n-# [Read more...](<%s>)", text, entry.Link)
	}
	if feed.IncludeImage {
		p.attachMedia(&embed, entry, images)
	}

	return notify.Message{Username: feed.Name, AvatarURL: feed.Avatar, Embeds: []notify.Embed{embed}}
}

// attachMedia picks at most one image for the embed. Structured media from
// the feed wins over images scraped from the entry body, even when none of
// the structured items turns out to be usable.
func (p *Processor) attachMedia(embed *notify.Embed, entry domain.ParsedItem, images []string) {
	if len(entry.Media) > 0 {
		for _, m := range entry.Media {
			if !m.IsImage() || m.URL == "" {
				continue
			}
			media := &notify.EmbedMedia{URL: m.URL, Height: m.Height, Width: m.Width}
			if m.Medium == "thumbnail" {
				embed.Thumbnail = media
			} else {
				embed.Image = media
			}
			return
		}
		return
	}

	if len(images) > 0 {
		embed.Thumbnail = &notify.EmbedMedia{URL: images[0]}
	}
}
