package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capturevault/internal/capture"
	"capturevault/internal/domain"
	"capturevault/internal/embedding/mock"
	"capturevault/internal/search"
	"capturevault/internal/storage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })

	emb := mock.NewEmbedder()
	return NewRouter(Deps{
		Searcher: search.NewSearcher(repo, logger, search.WithEmbedder(emb)),
		Captures: capture.NewService(repo, logger, capture.WithCaptioner(emb)),
		Logger:   logger,
	})
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	w := do(t, newTestRouter(t), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_RequiresIdentity(t *testing.T) {
	h := newTestRouter(t)
	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/api/search?q=x"},
		{http.MethodGet, "/api/captures"},
		{http.MethodGet, "/api/captures/abc"},
		{http.MethodDelete, "/api/captures/abc"},
		{http.MethodGet, "/api/tags"},
	} {
		w := do(t, h, tt.method, tt.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tt.method+" "+tt.path)
	}
}

func TestRouter_CaptureLifecycle(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{
		Kind: domain.KindImage, URL: "https://shop.test", Src: "https://shop.test/bike.png",
		Title: "Red bike", Tags: []string{"Bikes"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Capture
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)

	w = do(t, h, http.MethodGet, "/api/captures/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/captures/"+created.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/captures/"+created.ID+"/analyze", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var analyzed domain.Capture
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analyzed))
	assert.NotEmpty(t, analyzed.Caption)

	w = do(t, h, http.MethodPost, "/api/captures/"+created.ID+"/analyze", "u1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/api/tags", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tags []domain.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	require.Len(t, tags, 1)
	assert.Equal(t, "bikes", tags[0].Name)

	w = do(t, h, http.MethodDelete, "/api/captures/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodDelete, "/api/captures/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CreateValidation(t *testing.T) {
	h := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindLink, URL: "https://a.test"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/captures", bytes.NewBufferString("{not json"))
	req.Header.Set(UserHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Search(t *testing.T) {
	h := newTestRouter(t)
	w := do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{
		Kind: domain.KindText, URL: "https://notes.test", Content: "x", Title: "Lisbon trip",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodGet, "/api/search?q=lisbon", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results  []domain.ScoredResult `json:"results"`
		Strategy string                `json:"strategy"`
		Outcome  string                `json:"outcome"`
		Reason   string                `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "substring", resp.Strategy, "text captures carry no embedding")
	assert.Equal(t, "ok", resp.Outcome)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Lisbon trip", resp.Results[0].Title)

	w = do(t, h, http.MethodGet, "/api/search?q=lisbon&scope=links", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "links", resp.Strategy)
	assert.Empty(t, resp.Results)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestRouter_SearchParameterValidation(t *testing.T) {
	h := newTestRouter(t)
	for _, path := range []string{
		"/api/search?q=x&limit=ten",
		"/api/search?q=x&minScore=high",
		"/api/search?q=x&scope=images",
	} {
		w := do(t, h, http.MethodGet, path, "u1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestRouter_ListCapturesByKind(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindText, URL: "https://a.test", Content: "x"})
	do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindCode, URL: "https://a.test", Content: "y"})

	w := do(t, h, http.MethodGet, "/api/captures?kind=code", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Capture
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, domain.KindCode, list[0].Kind)

	w = do(t, h, http.MethodGet, "/api/captures?kind=video", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListCapturesByCategory(t *testing.T) {
	h := newTestRouter(t)
	do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindText, URL: "https://a.test", Content: "x", Category: "recipes"})
	do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindCode, URL: "https://a.test", Content: "y", Category: "recipes"})
	do(t, h, http.MethodPost, "/api/captures", "u1", domain.Capture{Kind: domain.KindText, URL: "https://a.test", Content: "z"})

	w := do(t, h, http.MethodGet, "/api/captures?category=recipes&kind=text", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Capture
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "recipes", list[0].Category)
	assert.Equal(t, domain.KindText, list[0].Kind)

	w = do(t, h, http.MethodGet, "/api/captures?category=recipes", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = do(t, h, http.MethodGet, "/api/captures?category=missing", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRouter_UpsertTags(t *testing.T) {
	h := newTestRouter(t)
	w := do(t, h, http.MethodPost, "/api/tags", "u1", map[string][]string{"names": {"  Foo", "foo", "BAR"}})
	require.Equal(t, http.StatusOK, w.Code)
	var tags []domain.Tag
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tags))
	assert.Len(t, tags, 2)
}
