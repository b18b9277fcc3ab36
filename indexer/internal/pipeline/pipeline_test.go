package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

var cutoff2019 = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

const goodArticle = `<article key="k1" mdate="2020-01-01"><author>A</author><author>B</author><title>T</title><ee>http://x</ee><url>db/conf/foo/bar</url></article>`

func doc(records ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n<dblp>\n" + strings.Join(records, "\n") + "\n</dblp>\n"
}

func collect(t *testing.T, input string) (*Collection, Stats) {
	t.Helper()
	c := NewCollection()
	run := New(Options{Cutoff: cutoff2019, Kinds: record.NewKindSet("conf", "journals"), SinkName: "collect"}, c)
	require.NoError(t, run.Stream(context.Background(), strings.NewReader(input)))
	return c, run.Stats()
}

func TestPipeline_SingleRecord(t *testing.T) {
	// WHAT: The canonical article yields exactly one fully populated record.
	// WHY: End-to-end check of extractor, three filters and Collect sink.
	c, stats := collect(t, doc(goodArticle))

	require.Equal(t, 1, c.Len())
	got := c.Records("conf/foo")
	require.Len(t, got, 1)
	assert.Equal(t, record.Record{
		Key:     "k1",
		MDate:   "2020-01-01",
		Title:   "T",
		Authors: []string{"A", "B"},
		EE:      "http://x",
		URL:     "db/conf/foo/bar",
		Venue:   "conf/foo",
	}, got[0])
	assert.Equal(t, Stats{Extracted: 1, Sunk: 1}, stats)
}

func TestPipeline_MissingEEDropped(t *testing.T) {
	noEE := `<article key="k2" mdate="2020-01-01"><author>A</author><author>B</author><title>T</title><url>db/conf/foo/bar</url></article>`
	c, stats := collect(t, doc(noEE))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, stats.Incomplete)
}

func TestPipeline_OldRecordDropped(t *testing.T) {
	old := strings.Replace(goodArticle, `mdate="2020-01-01"`, `mdate="2001-01-01"`, 1)
	c, stats := collect(t, doc(old))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, stats.TooOld)
}

func TestPipeline_VenueMismatchDropped(t *testing.T) {
	noMatch := strings.Replace(goodArticle, "db/conf/foo/bar", "notdb/x/y", 1)
	books := strings.Replace(goodArticle, "db/conf/foo/bar", "db/books/x/y", 1)
	c, stats := collect(t, doc(noMatch, books))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, stats.VenueMismatch)
}

func TestPipeline_AuthorOrderPreserved(t *testing.T) {
	ba := `<inproceedings key="k3" mdate="2020-06-01"><author>B</author><author>A</author><title>T</title><ee>https://doi.org/x</ee><url>db/journals/bar/baz</url></inproceedings>`
	c, _ := collect(t, doc(ba))
	got := c.Records("journals/bar")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"B", "A"}, got[0].Authors)
}

func TestPipeline_DocumentOrderAndCount(t *testing.T) {
	// WHAT: Only records passing all predicates reach the sink, in the order
	// their elements close.
	// WHY: Ordering is part of the Collect contract.
	a := strings.Replace(goodArticle, `key="k1"`, `key="a"`, 1)
	b := strings.Replace(goodArticle, `key="k1"`, `key="b"`, 1)
	dropped := strings.Replace(goodArticle, "<ee>http://x</ee>", "", 1)
	other := strings.Replace(strings.Replace(goodArticle, `key="k1"`, `key="c"`, 1), "db/conf/foo/bar", "db/journals/j/1", 1)
	d := strings.Replace(goodArticle, `key="k1"`, `key="d"`, 1)
	www := `<www key="homepages/x" mdate="2020-01-01"><author>A</author><title>Home Page</title><url>db/conf/foo/x</url></www>`

	c, stats := collect(t, doc(a, dropped, b, www, other, d))

	var keys []string
	for _, r := range c.Records("conf/foo") {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"a", "b", "d"}, keys)
	assert.Len(t, c.Records("journals/j"), 1)
	assert.Equal(t, []string{"conf/foo", "journals/j"}, c.Venues())
	assert.Equal(t, Stats{Extracted: 5, Incomplete: 1, Sunk: 4}, stats)
}

func TestPipeline_CollectDeterministic(t *testing.T) {
	input := doc(
		goodArticle,
		strings.Replace(goodArticle, "db/conf/foo/bar", "db/journals/j/1", 1),
		strings.Replace(goodArticle, `key="k1"`, `key="k9"`, 1),
	)
	first, _ := collect(t, input)
	second, _ := collect(t, input)
	assert.Equal(t, first.Groups(), second.Groups())
}

func TestPipeline_MalformedXMLAborts(t *testing.T) {
	// WHAT: A structural error aborts the run; records already closed were
	// sunk, nothing after the error is.
	// WHY: No partial record is ever emitted.
	input := `<dblp>` + goodArticle + `<article key="k2" mdate="2020-01-01"><author>A</title></article></dblp>`
	c := NewCollection()
	run := New(Options{Cutoff: cutoff2019}, c)
	err := run.Stream(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrMalformedXML)
	assert.Equal(t, 1, c.Len())
}

func TestPipeline_MalformedDateAborts(t *testing.T) {
	bad := strings.Replace(goodArticle, `mdate="2020-01-01"`, `mdate="01/01/2020"`, 1)
	c := NewCollection()
	run := New(Options{Cutoff: cutoff2019}, c)
	err := run.Stream(context.Background(), strings.NewReader(doc(bad, goodArticle)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDate))
	assert.Equal(t, 0, c.Len(), "the stream stops at the bad record")
}

func TestPipeline_IncompleteRecordWithBadDateIsDropped(t *testing.T) {
	// Completeness runs before the date filter, so an incomplete record
	// never has its date parsed.
	bad := `<article key="k" mdate="garbage"><title>T</title></article>`
	c, stats := collect(t, doc(bad))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, stats.Incomplete)
}

type fakeInserter struct {
	rows []*record.Record
	err  error
}

func (f *fakeInserter) InsertRecord(_ context.Context, rec *record.Record) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rec)
	return nil
}

func TestPipeline_Persist(t *testing.T) {
	ins := &fakeInserter{}
	run := New(Options{Cutoff: cutoff2019, SinkName: "persist"}, Persist(ins))
	require.NoError(t, run.Stream(context.Background(), strings.NewReader(doc(goodArticle))))
	require.Len(t, ins.rows, 1)
	assert.Equal(t, "conf/foo", ins.rows[0].Venue)
	assert.Equal(t, "A, B", ins.rows[0].AuthorList())
}

func TestPipeline_PersistErrorAborts(t *testing.T) {
	boom := errors.New("disk full")
	run := New(Options{Cutoff: cutoff2019}, Persist(&fakeInserter{err: boom}))
	err := run.Stream(context.Background(), strings.NewReader(doc(goodArticle, goodArticle)))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, run.Stats().Sunk)
}

func TestPipeline_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	noEE := strings.Replace(goodArticle, "<ee>http://x</ee>", "", 1)
	old := strings.Replace(goodArticle, `mdate="2020-01-01"`, `mdate="2001-01-01"`, 1)

	run := New(Options{Cutoff: cutoff2019, Metrics: m, SinkName: "collect"}, NewCollection())
	require.NoError(t, run.Stream(context.Background(), strings.NewReader(doc(goodArticle, noEE, old))))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Extracted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues("incomplete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues("too_old")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sunk.WithLabelValues("collect")))
}

func TestPipeline_DefaultKinds(t *testing.T) {
	c := NewCollection()
	run := New(Options{}, c)
	journal := strings.Replace(goodArticle, "db/conf/foo/bar", "db/journals/j/1", 1)
	books := strings.Replace(goodArticle, "db/conf/foo/bar", "db/books/b/1", 1)
	require.NoError(t, run.Stream(context.Background(), strings.NewReader(doc(goodArticle, journal, books))))
	assert.Equal(t, []string{"conf/foo", "journals/j"}, c.Venues())
}

func TestPipeline_HandleEventDirect(t *testing.T) {
	c := NewCollection()
	run := New(Options{Cutoff: cutoff2019}, c)
	require.NoError(t, event.Stream(context.Background(), strings.NewReader(doc(goodArticle)), run))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, Seeking, run.State())
}
