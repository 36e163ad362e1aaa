// Package handler exposes the voice assistant over HTTP JSON endpoints.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-voice/internal/assistant"
	"github.com/xenking/kart-voice/internal/intent"
	"github.com/xenking/kart-voice/pkg/httpmiddleware"
)

// maxBodySize bounds request bodies.
const maxBodySize = 64 << 10

// Catalog is the refreshable live catalog. *merge.Merger implements it.
type Catalog interface {
	Refresh(ctx context.Context)
	LiveCount() int
	LoadCategories(ctx context.Context) []string
}

// Handler serves the assistant API.
type Handler struct {
	assistant *assistant.Assistant
	catalog   Catalog
}

// New creates a Handler.
func New(a *assistant.Assistant, c Catalog) *Handler {
	return &Handler{assistant: a, catalog: c}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("POST /api/voice/search", h.VoiceSearch)
	mux.HandleFunc("POST /api/voice/listen", h.VoiceListen)
	mux.HandleFunc("POST /api/catalog/refresh", h.RefreshCatalog)
}

// ListProducts returns the merged catalog ranked without constraints.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.assistant.Search(r.Context(), intent.Criteria{})

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("products")
	encodeProducts(&e, products)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// ListCategories returns the category terms known from live collections.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("categories")
	encodeStrings(&e, h.catalog.LoadCategories(r.Context()))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// VoiceSearch answers a {"transcript": "..."} request.
func (h *Handler) VoiceSearch(w http.ResponseWriter, r *http.Request) {
	transcript, err := decodeTranscript(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.answer(w, r, transcript)
}

// VoiceListen captures a transcript with the configured transcriber and
// answers it.
func (h *Handler) VoiceListen(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.assistant.Listen(r.Context())
	switch {
	case errors.Is(err, assistant.ErrUnsupported):
		httpmiddleware.WriteError(w, http.StatusNotImplemented, err.Error())
		return
	case errors.Is(err, context.Canceled):
		// Client went away.
		zctx.From(r.Context()).Debug("Voice capture canceled", zap.Error(err))
		return
	case errors.Is(err, context.DeadlineExceeded):
		httpmiddleware.WriteError(w, http.StatusRequestTimeout, "no speech captured")
		return
	case err != nil:
		zctx.From(r.Context()).Warn("Voice capture failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusBadGateway, "voice capture failed")
		return
	}
	h.answer(w, r, transcript)
}

// RefreshCatalog refetches the live catalog and reports its size.
func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	h.catalog.Refresh(r.Context())

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("live")
	e.Int(h.catalog.LiveCount())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request, transcript string) {
	ans := h.assistant.Answer(r.Context(), transcript)
	zctx.From(r.Context()).Debug("Voice search",
		zap.String("transcript", transcript),
		zap.Int("results", len(ans.Products)),
	)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("transcript")
	e.Str(transcript)
	e.FieldStart("criteria")
	encodeCriteria(&e, ans.Criteria)
	e.FieldStart("products")
	encodeProducts(&e, ans.Products)
	e.FieldStart("summary")
	e.Str(ans.Summary)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func decodeTranscript(r io.Reader) (string, error) {
	var (
		transcript string
		found      bool
	)
	d := jx.Decode(r, 512)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "transcript" {
			return d.Skip()
		}
		if d.Next() != jx.String {
			return errors.New("transcript must be a string")
		}
		found = true
		var err error
		transcript, err = d.Str()
		return err
	}); err != nil {
		return "", errors.Wrap(err, "invalid request body")
	}
	if !found || transcript == "" {
		return "", errors.New("transcript is required")
	}
	return transcript, nil
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
