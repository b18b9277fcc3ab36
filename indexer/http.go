package indexer

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/dblpfeeds/idgen"
	"github.com/hazyhaar/dblpfeeds/indexer/internal/render"
	"github.com/hazyhaar/dblpfeeds/kit"
	"github.com/hazyhaar/dblpfeeds/shield"
)

// Router serves the index over HTTP:
//
//	GET /health
//	GET /index.json
//	GET /feeds/{kind}/{acronym}.xml
//	GET /metrics
func (ix *Indexer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(ix.requestID)
	for _, mw := range shield.Stack(ix.config.HTTP.Config, "/health", "/metrics") {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/index.json", func(w http.ResponseWriter, r *http.Request) {
		toc, err := ix.TOC(r.Context())
		if err != nil {
			ix.logger.ErrorContext(r.Context(), "indexer: http toc", "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		render.IndexJSON(w, toc)
	})

	r.Get("/feeds/{kind}/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		acronym, ok := strings.CutSuffix(file, ".xml")
		if !ok || acronym == "" {
			writeError(w, http.StatusNotFound, ErrVenueNotFound)
			return
		}
		key := chi.URLParam(r, "kind") + "/" + acronym

		var buf bytes.Buffer
		if err := ix.Feed(r.Context(), &buf, key); err != nil {
			if errors.Is(err, ErrVenueNotFound) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			ix.logger.ErrorContext(r.Context(), "indexer: http feed", "key", key, "error", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.Write(buf.Bytes())
	})

	r.Handle("/metrics", promhttp.HandlerFor(ix.registry, promhttp.HandlerOpts{}))
	return r
}

func (ix *Indexer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = idgen.Request()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
