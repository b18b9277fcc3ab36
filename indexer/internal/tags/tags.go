// Package tags derives arXiv subject tags for venues.
//
// Harvested arXiv metadata gives (title, categories) pairs. A record
// whose normalized title matches an arXiv title lends that entry's
// categories to its venue; a category becomes a tag of the venue when
// it is both frequent and a large share of the venue's matches.
package tags

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/store"
)

const (
	// MinCount is the number of matches a (venue, category) pair must
	// exceed.
	MinCount = 4
	// MinFraction is the share of the venue's matches it must exceed.
	MinFraction = 0.3
)

var (
	nonWord  = regexp.MustCompile(`\W+`)
	nonAlnum = regexp.MustCompile(`[^a-z0-9]`)
)

// NormalizeTitle collapses runs of non-word characters to one space.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(title, " "))
}

// CSCategories keeps the cs.* entries of a space separated category list.
func CSCategories(raw string) string {
	var keep []string
	for _, c := range strings.Fields(raw) {
		if strings.HasPrefix(c, "cs.") {
			keep = append(keep, c)
		}
	}
	return strings.Join(keep, " ")
}

// Hash is the key titles are matched on: lowercase letters and digits.
func Hash(title string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(title), "")
}

type pair struct {
	venue, tag string
}

// Index accumulates arXiv entries then record matches. Add every arXiv
// entry before the first record.
type Index struct {
	lookup     map[string]string
	tagCount   map[pair]int
	venueTotal map[string]int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		lookup:     make(map[string]string),
		tagCount:   make(map[pair]int),
		venueTotal: make(map[string]int),
	}
}

// AddArxiv registers an arXiv entry. A later entry with the same title
// hash replaces an earlier one.
func (ix *Index) AddArxiv(title, categories string) {
	ix.lookup[Hash(title)] = categories
}

// AddRecord counts the categories of the arXiv entry matching title, if
// any, for venue. It reports whether the title matched.
func (ix *Index) AddRecord(title, venue string) bool {
	cats, ok := ix.lookup[Hash(title)]
	if !ok {
		return false
	}
	for _, c := range strings.Fields(cats) {
		ix.tagCount[pair{venue, c}]++
		ix.venueTotal[venue]++
	}
	return true
}

// Tags returns the (venue, category) pairs passing both thresholds,
// ordered by venue then tag.
func (ix *Index) Tags() []store.Tag {
	var out []store.Tag
	for p, count := range ix.tagCount {
		fraction := float64(count) / float64(ix.venueTotal[p.venue])
		if count > MinCount && fraction > MinFraction {
			out = append(out, store.Tag{Venue: p.venue, Tag: p.tag})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
