// Package config loads webhook group configuration files. Each file
// describes one group: a webhook URL, a ledger file and the feeds
// delivered there, with group level defaults that individual feeds can
// override.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"

	"github.com/umputun/feedhook/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds one webhook group
type Config struct {
	Webhook        string        `yaml:"webhook" json:"webhook" jsonschema:"required,description=Webhook URL entries are posted to"`
	Database       string        `yaml:"database" json:"database,omitempty" jsonschema:"description=Path of the ledger file tracking delivered entries"`
	Username       string        `yaml:"username" json:"username,omitempty" jsonschema:"description=Sender display name for notifications"`
	AvatarURL      string        `yaml:"avatar_url" json:"avatar_url,omitempty" jsonschema:"description=Sender avatar URL for notifications"`
	IncludeSummary *bool         `yaml:"include_summary" json:"include_summary,omitempty" jsonschema:"default=true,description=Include extracted entry text in notifications"`
	IncludeImage   *bool         `yaml:"include_image" json:"include_image,omitempty" jsonschema:"default=true,description=Attach an entry image to notifications"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout,omitempty" jsonschema:"default=30s,description=HTTP timeout for feed fetches and webhook posts"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent,omitempty" jsonschema:"default=feedhook/1.0,description=User agent for outgoing HTTP requests"`
	Feeds          []FeedSpec    `yaml:"feeds" json:"feeds" jsonschema:"required,description=Feeds delivered to the webhook, bare URL strings or objects with overrides"`
}

// FeedSpec is one element of the feeds list, either a bare URL string or
// a mapping overriding the group defaults for that feed
type FeedSpec struct {
	URL            string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Username       string `yaml:"username" json:"username,omitempty" jsonschema:"description=Sender display name override for this feed"`
	AvatarURL      string `yaml:"avatar_url" json:"avatar_url,omitempty" jsonschema:"description=Sender avatar URL override for this feed"`
	IncludeSummary *bool  `yaml:"include_summary" json:"include_summary,omitempty" jsonschema:"description=Include extracted entry text for this feed"`
	IncludeImage   *bool  `yaml:"include_image" json:"include_image,omitempty" jsonschema:"description=Attach an entry image for this feed"`
}

// UnmarshalYAML accepts a scalar URL as shorthand for a feed without overrides
func (f *FeedSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&f.URL)
	}
	type plain FeedSpec // drop methods to avoid recursion
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*f = FeedSpec(p)
	return nil
}

// Load reads a group configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI args
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables, webhook URLs usually live in the environment
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "feedhook/1.0"
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	if cfg.Database == "" {
		lgr.Printf("[WARN] no database in %s, delivery state will not be persisted", path)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		lgr.Printf("[WARN] schema validation failed for %s: %v", path, err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Webhook == "" {
		return fmt.Errorf("webhook is required")
	}
	if err := checkHTTPURL(cfg.Webhook); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}

	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("at least one feed is required")
	}
	for i, feed := range cfg.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("feeds[%d]: url is required", i)
		}
		if err := checkHTTPURL(feed.URL); err != nil {
			return fmt.Errorf("feeds[%d]: %w", i, err)
		}
	}

	if cfg.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second")
	}

	return nil
}

// checkHTTPURL rejects URLs that can't be requested over http(s)
func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid URL %q", raw)
	}
	return nil
}

// FeedList resolves the group defaults into one immutable feed
// configuration per entry of the feeds list, in list order
func (c *Config) FeedList() []domain.Feed {
	res := make([]domain.Feed, 0, len(c.Feeds))
	for _, spec := range c.Feeds {
		feed := domain.Feed{
			URL:            spec.URL,
			Name:           c.Username,
			Avatar:         c.AvatarURL,
			IncludeSummary: boolOrDefault(c.IncludeSummary, true),
			IncludeImage:   boolOrDefault(c.IncludeImage, true),
		}
		if spec.Username != "" {
			feed.Name = spec.Username
		}
		if spec.AvatarURL != "" {
			feed.Avatar = spec.AvatarURL
		}
		if spec.IncludeSummary != nil {
			feed.IncludeSummary = *spec.IncludeSummary
		}
		if spec.IncludeImage != nil {
			feed.IncludeImage = *spec.IncludeImage
		}
		res = append(res, feed)
	}
	return res
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
