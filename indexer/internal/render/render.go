// Package render writes the published artifacts of the index: one RSS 2.0
// feed per venue, the venue TOC as an HTML fragment, JSON and Markdown,
// and OPML outlines grouping feeds by arXiv category.
package render

import (
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
)

const (
	// DefaultFeedBase is where published feeds are served from.
	DefaultFeedBase = "http://services.ceon.pl/dblpfeeds/"
	// DefaultLinkBase is the DBLP venue page prefix.
	DefaultLinkBase = "http://dblp.uni-trier.de/db/"
)

// Config holds the URL prefixes written into feeds and outlines.
type Config struct {
	FeedBase string `yaml:"feed_base" json:"feed_base"`
	LinkBase string `yaml:"link_base" json:"link_base"`
}

func (c *Config) defaults() {
	if c.FeedBase == "" {
		c.FeedBase = DefaultFeedBase
	}
	if c.LinkBase == "" {
		c.LinkBase = DefaultLinkBase
	}
	c.FeedBase = withSlash(c.FeedBase)
	c.LinkBase = withSlash(c.LinkBase)
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithClock replaces time.Now for lastBuildDate (tests).
func WithClock(now func() time.Time) Option { return func(r *Renderer) { r.now = now } }

// Renderer produces feeds and index files. It is safe for concurrent use.
type Renderer struct {
	cfg    Config
	now    func() time.Time
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates a Renderer.
func New(cfg Config, opts ...Option) *Renderer {
	cfg.defaults()
	r := &Renderer{
		cfg:    cfg,
		now:    time.Now,
		policy: bluemonday.StrictPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config { return r.cfg }

var unsafeKey = regexp.MustCompile(`[^a-zA-Z0-9_/-]`)

// SanitizeKey strips everything but letters, digits, '_', '/' and '-'
// from a venue key so it can be used as a relative path.
func SanitizeKey(key string) string {
	return unsafeKey.ReplaceAllString(key, "")
}

// FullKind names a venue kind in prose.
func FullKind(kind string) string {
	if kind == "journals" {
		return "journal"
	}
	return "conference"
}

func preposition(kind string) string {
	if kind == "journals" {
		return "published in"
	}
	return "presented at"
}
