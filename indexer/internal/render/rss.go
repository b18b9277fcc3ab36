package render

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Description   string    `xml:"description"`
	Link          string    `xml:"link"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Author      string `xml:"author"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// Feed writes the RSS 2.0 feed of venue v with one item per row, in the
// order given.
func (r *Renderer) Feed(w io.Writer, v store.Venue, rows []*store.Row) error {
	name := v.Name
	if name == "" {
		name = v.Key
	}
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         name,
			Description:   fmt.Sprintf("Feed for DBLP-indexed %s %s", FullKind(v.Kind), name),
			Link:          r.cfg.LinkBase + v.Key + "/index.html",
			LastBuildDate: r.now().UTC().Format(time.RFC1123Z),
		},
	}
	for _, row := range rows {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       row.Title,
			Description: fmt.Sprintf("Article %s %s by %s", preposition(v.Kind), name, row.Authors),
			Author:      row.Authors,
			Link:        row.Link,
			GUID:        row.Link,
			PubDate:     pubDate(row.Date),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("render: encode feed %s: %w", v.Key, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// FeedPath is the file a venue feed is written to under dir.
func FeedPath(dir, key string) string {
	return filepath.Join(dir, filepath.FromSlash(SanitizeKey(key))+".xml")
}

// WriteFeed renders the feed of v into FeedPath(dir, v.Key), creating the
// kind subdirectory as needed.
func (r *Renderer) WriteFeed(dir string, v store.Venue, rows []*store.Row) (string, error) {
	path := FeedPath(dir, v.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("render: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("render: create feed: %w", err)
	}
	if err := r.Feed(f, v, rows); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("render: close feed: %w", err)
	}
	return path, nil
}

// Rows converts collected records into feed rows.
func Rows(recs []record.Record) []*store.Row {
	rows := make([]*store.Row, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		rows = append(rows, &store.Row{
			Title:   rec.Title,
			Authors: rec.AuthorList(),
			Date:    rec.MDate,
			Link:    rec.EE,
			Venue:   rec.Venue,
		})
	}
	return rows
}

// pubDate renders an mdate as an RFC 1123 date at midnight UTC. Values
// that are not dates are passed through.
func pubDate(mdate string) string {
	t, err := time.Parse(record.DateLayout, mdate)
	if err != nil {
		return mdate
	}
	return t.Format(time.RFC1123Z)
}
