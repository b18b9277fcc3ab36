package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/dblpfeeds/indexer/internal/event"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/record"
)

type captured struct {
	recs []*record.Record
}

func (c *captured) Handle(_ context.Context, rec *record.Record) error {
	c.recs = append(c.recs, rec)
	return nil
}

func feed(t *testing.T, x *Extractor, events ...event.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, x.HandleEvent(context.Background(), ev))
	}
}

func TestExtractor_Transitions(t *testing.T) {
	// WHAT: Walk the state machine through one record, checking each state.
	// WHY: Transitions must be exactly Seeking → InRecord → InField → InRecord → Seeking.
	var out captured
	x := NewExtractor(&out)
	assert.Equal(t, Seeking, x.State())

	feed(t, x, event.StartElement("article", map[string]string{"key": "k1", "mdate": "2020-01-01"}))
	assert.Equal(t, InRecord, x.State())

	feed(t, x, event.StartElement("title", nil))
	assert.Equal(t, InField, x.State())

	feed(t, x, event.CharData("Streaming "), event.CharData("Parsers"))
	assert.Equal(t, InField, x.State())

	feed(t, x, event.EndElement("title"))
	assert.Equal(t, InRecord, x.State())
	assert.Empty(t, out.recs, "nothing emitted before the record closes")

	feed(t, x, event.EndElement("article"))
	assert.Equal(t, Seeking, x.State())
	require.Len(t, out.recs, 1)
	assert.Equal(t, "k1", out.recs[0].Key)
	assert.Equal(t, "2020-01-01", out.recs[0].MDate)
	assert.Equal(t, "Streaming Parsers", out.recs[0].Title)
	assert.Equal(t, 1, x.Emitted())
}

func TestExtractor_MultipleAuthorsKeepOrder(t *testing.T) {
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("inproceedings", map[string]string{"key": "k", "mdate": "2020-01-01"}),
		event.StartElement("author", nil), event.CharData("B"), event.EndElement("author"),
		event.StartElement("author", nil), event.CharData("A"), event.EndElement("author"),
		event.EndElement("inproceedings"),
	)
	require.Len(t, out.recs, 1)
	assert.Equal(t, []string{"B", "A"}, out.recs[0].Authors)
}

func TestExtractor_ScalarOverwritten(t *testing.T) {
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("article", nil),
		event.StartElement("ee", nil), event.CharData("http://first"), event.EndElement("ee"),
		event.StartElement("ee", nil), event.CharData("http://second"), event.EndElement("ee"),
		event.EndElement("article"),
	)
	require.Len(t, out.recs, 1)
	assert.Equal(t, "http://second", out.recs[0].EE)
}

func TestExtractor_TrimsFieldText(t *testing.T) {
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("article", nil),
		event.StartElement("title", nil), event.CharData("\n  Padded title  \n"), event.EndElement("title"),
		event.EndElement("article"),
	)
	assert.Equal(t, "Padded title", out.recs[0].Title)
}

func TestExtractor_IgnoresUnknownElements(t *testing.T) {
	// WHAT: Non-record, non-field elements are ignored in every state.
	// WHY: DBLP titles contain inline markup (<i>, <sub>) and records carry
	// many fields the pipeline does not use.
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("dblp", nil),
		event.StartElement("www", map[string]string{"key": "homepages/x"}),
		event.StartElement("author", nil), event.CharData("Outside"), event.EndElement("author"),
		event.EndElement("www"),
	)
	assert.Equal(t, Seeking, x.State())
	assert.Empty(t, out.recs)

	feed(t, x,
		event.StartElement("article", map[string]string{"key": "k"}),
		event.StartElement("year", nil), event.CharData("2020"), event.EndElement("year"),
		event.StartElement("title", nil),
		event.CharData("On "), event.StartElement("i", nil), event.CharData("k"), event.EndElement("i"),
		event.CharData("-Means"),
		event.EndElement("title"),
		event.EndElement("article"),
		event.EndElement("dblp"),
	)
	require.Len(t, out.recs, 1)
	assert.Equal(t, "On k-Means", out.recs[0].Title)
	assert.Equal(t, Seeking, x.State())
}

func TestExtractor_TextOutsideFieldIgnored(t *testing.T) {
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("article", nil),
		event.CharData("stray"),
		event.StartElement("title", nil), event.CharData("T"), event.EndElement("title"),
		event.CharData("more stray"),
		event.EndElement("article"),
	)
	assert.Equal(t, "T", out.recs[0].Title)
}

func TestExtractor_FieldAccumulatorReset(t *testing.T) {
	var out captured
	x := NewExtractor(&out)
	feed(t, x,
		event.StartElement("article", nil),
		event.StartElement("author", nil), event.CharData("A"), event.EndElement("author"),
		event.StartElement("title", nil), event.CharData("T"), event.EndElement("title"),
		event.EndElement("article"),
		event.StartElement("article", nil),
		event.StartElement("title", nil), event.CharData("U"), event.EndElement("title"),
		event.EndElement("article"),
	)
	require.Len(t, out.recs, 2)
	assert.Equal(t, "T", out.recs[0].Title)
	assert.Equal(t, "U", out.recs[1].Title)
	assert.Empty(t, out.recs[1].Authors, "records never share state")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "seeking", Seeking.String())
	assert.Equal(t, "in_record", InRecord.String())
	assert.Equal(t, "in_field", InField.String())
}
