package indexer

import (
	"fmt"
	"os"
	"time"

	"github.com/jinzhu/now"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/harvest"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/render"
	"github.com/hazyhaar/dblpfeeds/shield"
)

// Config holds all indexer configuration.
type Config struct {
	DBPath string `yaml:"db_path"`
	// CutoffDays keeps records modified in the last N days. Default: 1000.
	CutoffDays int `yaml:"cutoff_days"`
	// CutoffDate (YYYY-MM-DD) overrides CutoffDays when set.
	CutoffDate string   `yaml:"cutoff_date"`
	Kinds      []string `yaml:"kinds"`

	Feeds   FeedsConfig    `yaml:"feeds"`
	Harvest harvest.Config `yaml:"harvest"`
	HTTP    HTTPConfig     `yaml:"http"`
}

// FeedsConfig controls where and how feeds are written. Empty index
// paths are skipped.
type FeedsConfig struct {
	Dir           string `yaml:"dir"`
	IndexHTML     string `yaml:"index_html"`
	IndexJSON     string `yaml:"index_json"`
	IndexMarkdown string `yaml:"index_md"`
	render.Config `yaml:",inline"`
}

// HTTPConfig controls the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// RebuildInterval polls the ingest log and rebuilds the feed files
	// after each finished run. 0 disables.
	RebuildInterval time.Duration `yaml:"rebuild_interval"`
	// RebuildDebounce waits for runs to settle. Default: 30s.
	RebuildDebounce time.Duration `yaml:"rebuild_debounce"`
	shield.Config   `yaml:",inline"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "dblp.sqlite"
	}
	if c.CutoffDays <= 0 {
		c.CutoffDays = 1000
	}
	if len(c.Kinds) == 0 {
		c.Kinds = append([]string(nil), record.DefaultKinds...)
	}
	if c.Feeds.Dir == "" {
		c.Feeds.Dir = "feeds"
	}
	if c.Feeds.IndexHTML == "" {
		c.Feeds.IndexHTML = "index.html"
	}
	if c.Feeds.IndexJSON == "" {
		c.Feeds.IndexJSON = "index.json"
	}
	if c.Harvest.Endpoint == "" {
		c.Harvest.Endpoint = "http://export.arxiv.org/oai2"
	}
	if c.Harvest.Settings == "" {
		c.Harvest.Settings = "metadataPrefix=arXiv&set=cs"
	}
	if c.Harvest.Dir == "" {
		c.Harvest.Dir = "chunks"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RebuildDebounce <= 0 {
		c.HTTP.RebuildDebounce = 30 * time.Second
	}
	c.DBPath = expand(c.DBPath)
	c.Feeds.Dir = expand(c.Feeds.Dir)
	c.Feeds.IndexHTML = expand(c.Feeds.IndexHTML)
	c.Feeds.IndexJSON = expand(c.Feeds.IndexJSON)
	c.Feeds.IndexMarkdown = expand(c.Feeds.IndexMarkdown)
	c.Harvest.Dir = expand(c.Harvest.Dir)
}

func expand(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return p
}

// Cutoff is the earliest modification date kept, at the start of its
// day in UTC.
func (c *Config) Cutoff(at time.Time) (time.Time, error) {
	if c.CutoffDate != "" {
		t, err := time.Parse(record.DateLayout, c.CutoffDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: cutoff_date %q: %v", ErrInvalidInput, c.CutoffDate, err)
		}
		return t, nil
	}
	days := c.CutoffDays
	if days <= 0 {
		days = 1000
	}
	return now.With(at.UTC()).BeginningOfDay().AddDate(0, 0, -days), nil
}

// LoadConfigFile reads a YAML config file. A leading ~ in path is
// expanded.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(expand(path))
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("indexer: parse config: %w", err)
	}
	return cfg, nil
}
