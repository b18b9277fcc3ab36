// Package venue reads the DBLP venue index (dblp_bht.xml).
//
// The index is not parsed as XML: each venue is one line of the form
//
//	<bht key="/db/conf/icse/index.bht" title="ICSE">
//
// and lines that do not have that shape are skipped.
package venue

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

var linePattern = regexp.MustCompile(`^<bht key="/db/(.*)/(.*)/index\.bht" title="(.*)">`)

// ParseLine extracts a venue from one index line. ok is false when the
// line is not a venue entry.
func ParseLine(line string) (v store.Venue, ok bool) {
	m := linePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return store.Venue{}, false
	}
	kind := strings.TrimSpace(m[1])
	acronym := strings.TrimSpace(m[2])
	return store.Venue{
		Key:     kind + "/" + acronym,
		Kind:    kind,
		Acronym: acronym,
		Name:    strings.TrimSpace(html.UnescapeString(m[3])),
	}, true
}

// Parse scans r line by line and calls fn for every venue whose kind is in
// kinds. An empty kinds set allows the default kinds.
func Parse(ctx context.Context, r io.Reader, kinds record.KindSet, fn func(store.Venue) error) error {
	if len(kinds) == 0 {
		kinds = record.NewKindSet(record.DefaultKinds...)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := ParseLine(sc.Text())
		if !ok || !kinds.Has(v.Kind) {
			continue
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("venue: scan: %w", err)
	}
	return nil
}
