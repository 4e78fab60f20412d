// Package httpapi exposes search and capture operations over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"capturevault/internal/domain"
	"capturevault/internal/search"
	"capturevault/internal/storage"
)

// Searcher runs queries for the user in ctx.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (search.Response, error)
}

// Captures is the capture service as seen by the HTTP layer.
type Captures interface {
	Create(ctx context.Context, c domain.Capture) (*domain.Capture, error)
	Get(ctx context.Context, id string) (*domain.Capture, error)
	ListInCategory(ctx context.Context, category string, kinds ...domain.CaptureKind) ([]domain.Capture, error)
	Delete(ctx context.Context, id string) error
	AnalyzeImage(ctx context.Context, id string) (*domain.Capture, error)
	UpsertTags(ctx context.Context, names []string) ([]domain.Tag, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Searcher Searcher
	Captures Captures
	Logger   logrus.FieldLogger
}

type api struct {
	search   Searcher
	captures Captures
	log      logrus.FieldLogger
}

// NewRouter creates the HTTP router.
func NewRouter(deps Deps) http.Handler {
	a := &api{
		search:   deps.Searcher,
		captures: deps.Captures,
		log:      deps.Logger.WithField("component", "httpapi"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(identity)

		r.Get("/search", a.handleSearch)

		r.Route("/captures", func(r chi.Router) {
			r.Get("/", a.handleListCaptures)
			r.Post("/", a.handleCreateCapture)
			r.Get("/{id}", a.handleGetCapture)
			r.Delete("/{id}", a.handleDeleteCapture)
			r.Post("/{id}/analyze", a.handleAnalyze)
		})

		r.Get("/tags", a.handleListTags)
		r.Post("/tags", a.handleUpsertTags)
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.WithError(err).Warn("Failed to encode response")
	}
}

// writeError maps the error taxonomy onto status codes.
func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFoundOrForbidden):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCapture), errors.Is(err, domain.ErrInvalidURL), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrAlreadyAnalyzed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		a.log.WithError(err).Error("Request failed")
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}
