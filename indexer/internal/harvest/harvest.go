// Package harvest downloads OAI-PMH ListRecords responses page by page
// and stores each page ("chunk") as a file.
//
// Chunk n is written to
//
//	<dir>/<n/65536 as %04x>/<n%65536/256 as %02x>/<n as %08x>.xml
//
// so a harvest interrupted at chunk n can resume with Start{Chunk: n,
// Token: <token of chunk n-1>}.
package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethgrid/pester"
)

// ErrExhausted means a chunk could not be fetched within the configured
// attempts.
var ErrExhausted = errors.New("harvest: attempts exhausted")

// OAIError is an error reported by the repository in an <error> element.
type OAIError struct {
	Code    string
	Message string
}

func (e OAIError) Error() string {
	return fmt.Sprintf("harvest: oai error %s: %s", e.Code, e.Message)
}

// ChunkError reports the chunk and resumption token a harvest stopped at.
type ChunkError struct {
	Chunk int
	Token string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("harvest: chunk %d (token %q): %v", e.Chunk, e.Token, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Doer performs HTTP requests. *pester.Client and *http.Client satisfy it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config controls a Harvester.
type Config struct {
	// Endpoint is the OAI-PMH base URL, e.g. http://export.arxiv.org/oai2.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// Settings is the query appended to the first request,
	// e.g. metadataPrefix=arXiv&set=cs.
	Settings string `yaml:"settings" json:"settings"`
	// Dir is the chunk root directory. Default: ".".
	Dir string `yaml:"dir" json:"dir"`
	// Attempts per chunk. Default: 3.
	Attempts int `yaml:"attempts" json:"attempts"`
	// Backoff between attempts. Default: 30s.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
	// Delay between successive chunks. Default: none.
	Delay time.Duration `yaml:"delay" json:"delay"`
	// Timeout per HTTP request. Default: 5m.
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

func (c *Config) defaults() {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "dblpfeeds-harvest/1.0"
	}
}

// Start is where a harvest begins. A zero Start fetches the first page.
type Start struct {
	Chunk int
	Token string
}

// Option customises a Harvester.
type Option func(*Harvester)

// WithDoer replaces the retrying pester client.
func WithDoer(d Doer) Option { return func(h *Harvester) { h.doer = d } }

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(h *Harvester) { h.logger = l } }

// Harvester fetches chunks sequentially.
type Harvester struct {
	cfg    Config
	doer   Doer
	logger *slog.Logger
}

// New creates a Harvester. Unless WithDoer is given, requests go through
// a pester client retrying cfg.Attempts times, cfg.Backoff apart.
func New(cfg Config, opts ...Option) *Harvester {
	cfg.defaults()
	h := &Harvester{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	if h.doer == nil {
		c := pester.New()
		c.Concurrency = 1
		c.MaxRetries = cfg.Attempts
		backoff := cfg.Backoff
		c.Backoff = func(int) time.Duration { return backoff }
		c.Timeout = cfg.Timeout
		h.doer = c
	}
	return h
}

// ChunkPath is the file chunk n is written to under dir.
func ChunkPath(dir string, n int) string {
	return filepath.Join(dir,
		fmt.Sprintf("%04x", n/65536),
		fmt.Sprintf("%02x", n%65536/256),
		fmt.Sprintf("%08x.xml", n))
}

// FirstURL is the request for the first page.
func (h *Harvester) FirstURL() string {
	return fmt.Sprintf("%s?verb=ListRecords&%s", h.cfg.Endpoint, h.cfg.Settings)
}

// NextURL is the request resuming at token.
func (h *Harvester) NextURL(token string) string {
	return fmt.Sprintf("%s?verb=ListRecords&resumptionToken=%s", h.cfg.Endpoint, token)
}

// Harvest fetches pages from start until the repository returns no
// resumption token, and returns how many chunks were written. When a page
// fails the returned *ChunkError carries the chunk number and token to
// resume with.
func (h *Harvester) Harvest(ctx context.Context, start Start) (int, error) {
	chunk, token := start.Chunk, start.Token
	url := h.FirstURL()
	if token != "" {
		url = h.NextURL(token)
	}

	written := 0
	for {
		h.logger.Info("harvest: fetching chunk", "chunk", chunk, "token", token)
		next, err := h.fetch(ctx, chunk, url)
		if errors.Is(err, errNoRecords) {
			h.logger.Info("harvest: no records", "chunk", chunk)
			return written, nil
		}
		if err != nil {
			return written, &ChunkError{Chunk: chunk, Token: token, Err: err}
		}
		written++
		if next == "" {
			h.logger.Info("harvest: done", "chunks", written)
			return written, nil
		}
		chunk++
		token = next
		url = h.NextURL(token)

		if h.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return written, &ChunkError{Chunk: chunk, Token: token, Err: ctx.Err()}
			case <-time.After(h.cfg.Delay):
			}
		}
	}
}

var errNoRecords = errors.New("harvest: no records match")

// fetch downloads one page, stores it as chunk n and returns its
// resumption token.
func (h *Harvester) fetch(ctx context.Context, n int, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("harvest: request: %w", err)
	}
	req.Header.Set("User-Agent", h.cfg.UserAgent)

	resp, err := h.doer.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w after %d attempts: %w", ErrExhausted, h.cfg.Attempts, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w after %d attempts: HTTP %d", ErrExhausted, h.cfg.Attempts, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("harvest: read body: %w", err)
	}

	page, err := ParsePage(ctx, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if page.Err != nil {
		if page.Err.Code == "noRecordsMatch" {
			return "", errNoRecords
		}
		return "", *page.Err
	}

	path := ChunkPath(h.cfg.Dir, n)
	if err := writeFile(path, body); err != nil {
		return "", err
	}
	h.logger.Debug("harvest: chunk saved", "chunk", n, "path", path, "bytes", len(body))
	return page.Token, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("harvest: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("harvest: write chunk: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("harvest: rename chunk: %w", err)
	}
	return nil
}
