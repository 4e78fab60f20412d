package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"capturevault/internal/domain"
	"capturevault/internal/search"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type searchResponse struct {
	Results  []domain.ScoredResult `json:"results"`
	Strategy search.Strategy       `json:"strategy"`
	Outcome  search.Outcome        `json:"outcome"`
	Reason   string                `json:"reason,omitempty"`
}

func (a *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := domain.SearchRequest{Query: q.Get("q")}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: limit must be an integer", errBadRequest))
			return
		}
		req.Limit = n
	}
	if v := q.Get("minScore"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: minScore must be a number", errBadRequest))
			return
		}
		req.MinScore = &f
	}
	switch scope := domain.SearchScope(q.Get("scope")); scope {
	case domain.ScopeAll, domain.ScopeLinks:
		req.Scope = scope
	default:
		a.writeError(w, fmt.Errorf("%w: unknown scope %q", errBadRequest, scope))
		return
	}

	resp, err := a.search.Search(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := searchResponse{
		Results:  resp.Results,
		Strategy: resp.Strategy,
		Outcome:  resp.Outcome,
	}
	if out.Results == nil {
		out.Results = []domain.ScoredResult{}
	}
	if resp.Reason != nil {
		out.Reason = resp.Reason.Error()
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *api) handleCreateCapture(w http.ResponseWriter, r *http.Request) {
	var c domain.Capture
	if err := decodeBody(w, r, &c); err != nil {
		a.writeError(w, err)
		return
	}
	created, err := a.captures.Create(r.Context(), c)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

func (a *api) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	var kinds []domain.CaptureKind
	for _, k := range strings.Split(r.URL.Query().Get("kind"), ",") {
		if k = strings.TrimSpace(k); k == "" {
			continue
		}
		kind := domain.CaptureKind(k)
		if !kind.Valid() {
			a.writeError(w, fmt.Errorf("%w: unknown kind %q", errBadRequest, k))
			return
		}
		kinds = append(kinds, kind)
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	captures, err := a.captures.ListInCategory(r.Context(), category, kinds...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if captures == nil {
		captures = []domain.Capture{}
	}
	a.writeJSON(w, http.StatusOK, captures)
}

func (a *api) handleGetCapture(w http.ResponseWriter, r *http.Request) {
	c, err := a.captures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, c)
}

func (a *api) handleDeleteCapture(w http.ResponseWriter, r *http.Request) {
	if err := a.captures.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	c, err := a.captures.AnalyzeImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, c)
}

func (a *api) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := a.captures.ListTags(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	a.writeJSON(w, http.StatusOK, tags)
}

type upsertTagsRequest struct {
	Names []string `json:"names"`
}

func (a *api) handleUpsertTags(w http.ResponseWriter, r *http.Request) {
	var req upsertTagsRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	tags, err := a.captures.UpsertTags(r.Context(), req.Names)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tags)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}
