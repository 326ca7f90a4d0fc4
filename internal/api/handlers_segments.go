package api

import (
	"bytes"
	"encoding/json"
	"html"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// mdRenderer converts segment markdown to HTML for previews. GFM enables
// pipe tables, which segment content relies on.
var mdRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

func (s *Server) handleListTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.orchestrator.SegmentStore().ListTickers()
	if err != nil {
		jsonError(w, "list tickers: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"tickers": tickers})
}

func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = s.cfg.DefaultPlatforms[0]
	}

	bundle, err := s.orchestrator.SegmentStore().Load(ticker, platform)
	if err != nil {
		if os.IsNotExist(err) {
			jsonError(w, "no segments stored for "+ticker+"/"+platform, http.StatusNotFound)
			return
		}
		jsonError(w, "load segments: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bundle)
}

func (s *Server) handleSegmentPreview(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	segmentID := chi.URLParam(r, "segmentID")
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = s.cfg.DefaultPlatforms[0]
	}

	bundle, err := s.orchestrator.SegmentStore().Load(ticker, platform)
	if err != nil {
		if os.IsNotExist(err) {
			jsonError(w, "no segments stored for "+ticker+"/"+platform, http.StatusNotFound)
			return
		}
		jsonError(w, "load segments: "+err.Error(), http.StatusInternalServerError)
		return
	}

	for _, seg := range bundle.Segments {
		if seg.SegmentID != segmentID {
			continue
		}
		var buf bytes.Buffer
		buf.WriteString("<h1>" + html.EscapeString(seg.Title) + "</h1>\n")
		if err := mdRenderer.Convert([]byte(seg.ContentMarkdown), &buf); err != nil {
			jsonError(w, "render segment: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
		return
	}
	jsonError(w, "segment not found: "+segmentID, http.StatusNotFound)
}
