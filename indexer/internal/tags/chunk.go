package tags

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
)

// Entry is one arXiv metadata record, normalized.
type Entry struct {
	Title      string
	Categories string
}

// ReadChunk streams an OAI-PMH chunk and calls fn for every arXiv
// element, whatever its namespace prefix. Entries without a title are
// skipped.
func ReadChunk(ctx context.Context, r io.Reader, fn func(Entry) error) error {
	var (
		depth     int
		field     string
		title     strings.Builder
		cats      strings.Builder
		haveTitle bool
		haveCats  bool
	)
	h := event.HandlerFunc(func(ctx context.Context, ev event.Event) error {
		switch ev.Kind {
		case event.Start:
			if ev.Name == "arXiv" {
				depth = 1
				title.Reset()
				cats.Reset()
				haveTitle, haveCats = false, false
				return nil
			}
			if depth == 0 {
				return nil
			}
			depth++
			// Only direct children, and only their first occurrence.
			if depth == 2 && ev.Name == "title" && !haveTitle {
				field = "title"
			} else if depth == 2 && ev.Name == "categories" && !haveCats {
				field = "categories"
			}
		case event.Text:
			switch field {
			case "title":
				title.WriteString(ev.Text)
			case "categories":
				cats.WriteString(ev.Text)
			}
		case event.End:
			if depth == 0 {
				return nil
			}
			depth--
			if depth == 1 && field != "" {
				if field == "title" {
					haveTitle = true
				} else {
					haveCats = true
				}
				field = ""
			}
			if depth == 0 && haveTitle {
				return fn(Entry{
					Title:      NormalizeTitle(title.String()),
					Categories: CSCategories(cats.String()),
				})
			}
		}
		return nil
	})
	return event.Stream(ctx, r, h)
}

// ReadDir reads every .xml chunk below dir in lexical order.
func ReadDir(ctx context.Context, dir string, fn func(Entry) error) (files int, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".xml") {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := ReadChunk(ctx, f, fn); err != nil {
			return fmt.Errorf("tags: chunk %s: %w", path, err)
		}
		files++
		return nil
	})
	return files, err
}
