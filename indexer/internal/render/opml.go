package render

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

// ErrNotCSTag is returned for a tag outside the cs.* arXiv archive.
var ErrNotCSTag = errors.New("render: expecting only cs.* tags")

// Labels maps sanitized category codes to outline labels. Codes missing
// from the map are used as-is.
var Labels = map[string]string{
	"AI": "Artificial Intelligence",
}

var notUpper = regexp.MustCompile(`[^A-Z]`)

// OPMLName returns the sanitized code of a cs.* tag ("cs.AI" → "AI"),
// which is also the OPML file base name.
func OPMLName(tag string) (string, error) {
	if !strings.HasPrefix(tag, "cs.") {
		return "", fmt.Errorf("%w: %q", ErrNotCSTag, tag)
	}
	return notUpper.ReplaceAllString(tag, ""), nil
}

type opmlDoc struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    opmlHead `xml:"head"`
	Body    opmlBody `xml:"body"`
}

type opmlHead struct {
	Title string `xml:"title"`
}

type opmlBody struct {
	Outline opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Type     string        `xml:"type,attr,omitempty"`
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	XMLURL   string        `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string        `xml:"htmlUrl,attr,omitempty"`
	Outlines []opmlOutline `xml:"outline"`
}

// OPML writes the outline of one tag listing the feeds of venues.
func (r *Renderer) OPML(w io.Writer, tag string, venues []store.Venue) error {
	code, err := OPMLName(tag)
	if err != nil {
		return err
	}
	label := code
	if l, ok := Labels[code]; ok {
		label = l
	}

	doc := opmlDoc{
		Version: "1.0",
		Head:    opmlHead{Title: label + " feeds"},
		Body:    opmlBody{Outline: opmlOutline{Text: label, Title: label}},
	}
	for _, v := range venues {
		doc.Body.Outline.Outlines = append(doc.Body.Outline.Outlines, opmlOutline{
			Type:    "rss",
			Text:    v.Name,
			Title:   v.Name,
			XMLURL:  r.cfg.FeedBase + v.Key + ".xml",
			HTMLURL: r.cfg.LinkBase + v.Key + "/index.html",
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("render: encode opml %s: %w", tag, err)
	}
	_, err = io.WriteString(w, "\n")
	return err
}
