package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

// IndexHTML writes one entry div per TOC venue, linking to its feed.
// Venue names are stripped of markup.
func (r *Renderer) IndexHTML(w io.Writer, toc []*store.TOCEntry) error {
	for _, e := range toc {
		_, err := fmt.Fprintf(w, "<div class=\"entry\"><a href=\"%s.xml\">%s</a> <span class=\"count\">%d</span></div>\n",
			SanitizeKey(e.Key), r.policy.Sanitize(e.Name), e.Count)
		if err != nil {
			return err
		}
	}
	return nil
}

// IndexJSON writes the TOC as a JSON array of
// [key, kind, acronym, name, count] arrays.
func IndexJSON(w io.Writer, toc []*store.TOCEntry) error {
	if toc == nil {
		toc = []*store.TOCEntry{}
	}
	return json.NewEncoder(w).Encode(toc)
}

// IndexMarkdown writes the TOC as Markdown, converted from the HTML
// fragment.
func (r *Renderer) IndexMarkdown(w io.Writer, toc []*store.TOCEntry) error {
	var buf bytes.Buffer
	if err := r.IndexHTML(&buf, toc); err != nil {
		return err
	}
	md, err := r.md.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("render: markdown: %w", err)
	}
	_, err = io.WriteString(w, strings.TrimSpace(md)+"\n")
	return err
}
