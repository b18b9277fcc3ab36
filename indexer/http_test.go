package indexer

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	ix := testIndexer(t)
	rec := get(t, ix.Router(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
}

func TestRouter_RequestIDEchoed(t *testing.T) {
	ix := testIndexer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	ix.Router().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRouter_IndexJSON(t *testing.T) {
	ix := loaded(t)
	rec := get(t, ix.Router(), "/index.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var toc [][]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toc))
	require.Len(t, toc, 2)
	assert.Equal(t, "conf/icse", toc[0][0])
	assert.Equal(t, 2.0, toc[0][4])
}

func TestRouter_IndexJSON_Empty(t *testing.T) {
	ix := testIndexer(t)
	rec := get(t, ix.Router(), "/index.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_Feed(t *testing.T) {
	ix := loaded(t)
	rec := get(t, ix.Router(), "/feeds/conf/icse.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/rss+xml")

	var doc struct {
		Title string   `xml:"channel>title"`
		Items []string `xml:"channel>item>title"`
	}
	require.NoError(t, xml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "ICSE", doc.Title)
	assert.Equal(t, []string{"Fuzzing Everything.", "Testing Streams."}, doc.Items)
}

func TestRouter_FeedNotFound(t *testing.T) {
	ix := loaded(t)
	for _, path := range []string{"/feeds/conf/nope.xml", "/feeds/conf/icse", "/feeds/conf/.xml"} {
		rec := get(t, ix.Router(), path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestRouter_RateLimitAndHeaders(t *testing.T) {
	ix := loaded(t)
	ix.config.HTTP.RateLimit.Requests = 1
	h := ix.Router()

	first := get(t, h, "/index.json")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "nosniff", first.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/index.json").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code, "health is exempt")
}

func TestRouter_Head(t *testing.T) {
	ix := loaded(t)
	rec := httptest.NewRecorder()
	ix.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/feeds/conf/icse.xml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	ix := loaded(t)
	rec := get(t, ix.Router(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "dblpfeeds_records_extracted_total 6")
	assert.Contains(t, body, `dblpfeeds_records_sunk_total{sink="persist"} 3`)
}
