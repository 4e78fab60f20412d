package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capturevault/internal/domain"
)

// setupTestDB creates a temporary BadgerDB instance for testing.
// It returns the repository instance and a cleanup function.
func setupTestDB(t *testing.T) (*BadgerRepository, func()) {
	t.Helper()

	tempDir := t.TempDir()

	testLogger := logrus.New()
	testLogger.SetOutput(os.Stderr)        // Send logs to stderr during tests
	testLogger.SetLevel(logrus.ErrorLevel) // Only show errors by default

	repo, err := NewBadgerRepository(tempDir, testLogger)
	require.NoError(t, err, "Failed to create test BadgerDB repository")

	cleanup := func() {
		err := repo.Close()
		assert.NoError(t, err, "Failed to close test BadgerDB repository")
	}

	return repo, cleanup
}

// fakeClock returns a now func that advances by one second per call.
func fakeClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestBadgerRepository_SaveAndListCaptures(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	older := domain.Capture{
		ID: "c1", UserID: "alice", Kind: domain.KindLink,
		URL: "https://example.com", Href: "https://example.com/a",
		Timestamp: time.Now().Add(-time.Hour),
	}
	newer := domain.Capture{
		ID: "c2", UserID: "alice", Kind: domain.KindImage,
		URL: "https://example.com", Src: "https://example.com/i.png",
		Timestamp: time.Now(),
	}
	other := domain.Capture{
		ID: "c3", UserID: "bob", Kind: domain.KindText,
		URL: "https://another.net", Content: "hello",
		Timestamp: time.Now(),
	}
	for _, c := range []domain.Capture{older, newer, other} {
		require.NoError(t, repo.SaveCapture(ctx, c))
	}

	all, err := repo.ListCaptures(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].ID, "newest capture should come first")
	assert.Equal(t, "c1", all[1].ID)

	links, err := repo.ListCaptures(ctx, "alice", domain.KindLink)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c1", links[0].ID)

	none, err := repo.ListCaptures(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := repo.GetCapture(ctx, "alice", "c2")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/i.png", got.Src)

	_, err = repo.GetCapture(ctx, "bob", "c2")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden, "captures of other users are invisible")
}

func TestBadgerRepository_ListCapturesInCategory(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()
	for _, c := range []domain.Capture{
		{ID: "c1", UserID: "alice", Kind: domain.KindLink, URL: "https://a.com", Href: "https://a.com/x", Category: "reading", Timestamp: now.Add(-time.Hour)},
		{ID: "c2", UserID: "alice", Kind: domain.KindText, URL: "https://a.com", Content: "note", Category: "reading", Timestamp: now},
		{ID: "c3", UserID: "alice", Kind: domain.KindLink, URL: "https://a.com", Href: "https://a.com/y", Category: domain.DefaultCategory, Timestamp: now},
		{ID: "c4", UserID: "bob", Kind: domain.KindLink, URL: "https://a.com", Href: "https://a.com/z", Category: "reading", Timestamp: now},
	} {
		require.NoError(t, repo.SaveCapture(ctx, c))
	}

	reading, err := repo.ListCapturesInCategory(ctx, "alice", "reading")
	require.NoError(t, err)
	require.Len(t, reading, 2)
	assert.Equal(t, "c2", reading[0].ID)
	assert.Equal(t, "c1", reading[1].ID)

	readingLinks, err := repo.ListCapturesInCategory(ctx, "alice", "reading", domain.KindLink)
	require.NoError(t, err)
	require.Len(t, readingLinks, 1)
	assert.Equal(t, "c1", readingLinks[0].ID)

	all, err := repo.ListCapturesInCategory(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListCapturesInCategory(ctx, "alice", "Reading")
	require.NoError(t, err)
	assert.Empty(t, none, "categories match exactly")
}

func TestBadgerRepository_UserIDsCannotCollide(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveCapture(ctx, domain.Capture{
		ID: "x", UserID: "a:capture:b", Kind: domain.KindText, URL: "u", Content: "c",
	}))

	got, err := repo.ListCaptures(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBadgerRepository_DeleteCapture(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveCapture(ctx, domain.Capture{
		ID: "c1", UserID: "alice", Kind: domain.KindLink, URL: "https://a.com", Href: "https://a.com/x",
	}))
	previewID, err := repo.UpsertPreview(ctx, "alice", domain.PreviewInput{
		CanonicalURL: "https://a.com/x", OriginalURL: "https://a.com/x", Domain: "a.com",
	})
	require.NoError(t, err)
	require.NoError(t, repo.AttachPreview(ctx, "alice", "c1", previewID))

	err = repo.DeleteCapture(ctx, "bob", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden)

	require.NoError(t, repo.DeleteCapture(ctx, "alice", "c1"))

	_, err = repo.GetCapture(ctx, "alice", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden)

	// The preview outlives the capture.
	p, err := repo.GetPreview(ctx, "alice", previewID)
	require.NoError(t, err)
	assert.Equal(t, "https://a.com/x", p.CanonicalURL)

	err = repo.DeleteCapture(ctx, "alice", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden, "deleting twice reports the missing capture")
}

func TestBadgerRepository_UpsertPreviewPatchesInPlace(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	repo.now = fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ctx := context.Background()
	canonical := "https://example.com/blog/my-post"

	firstID, err := repo.UpsertPreview(ctx, "alice", domain.PreviewInput{
		CanonicalURL: canonical,
		OriginalURL:  canonical + "?utm_source=x",
		Domain:       "example.com",
		Meta:         domain.Metadata{Title: "First", Description: "kept"},
		ContentType:  domain.ContentArticle,
		HTTPStatus:   200,
	})
	require.NoError(t, err)
	first, err := repo.GetPreview(ctx, "alice", firstID)
	require.NoError(t, err)

	secondID, err := repo.UpsertPreview(ctx, "alice", domain.PreviewInput{
		CanonicalURL: canonical,
		OriginalURL:  canonical,
		Domain:       "example.com",
		Meta:         domain.Metadata{Title: "Second", Keywords: []string{"go"}},
		ContentType:  domain.ContentArticle,
	})
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID, "same canonical URL must map to the same preview")

	previews, err := repo.ListPreviews(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, previews, 1)

	second := previews[0]
	assert.Equal(t, "Second", second.Title)
	assert.Equal(t, "kept", second.Description, "fields absent from a pass are not cleared")
	assert.Equal(t, 200, second.HTTPStatus)
	assert.Equal(t, []string{"go"}, second.Keywords)
	assert.Equal(t, canonical, second.OriginalURL)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt), "createdAt is immutable")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updatedAt advances")
	assert.True(t, second.LastCheckedAt.After(first.LastCheckedAt))

	byURL, err := repo.GetPreviewByCanonicalURL(ctx, "alice", canonical)
	require.NoError(t, err)
	assert.Equal(t, firstID, byURL.ID)

	_, err = repo.GetPreviewByCanonicalURL(ctx, "bob", canonical)
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden)
}

func TestBadgerRepository_ConcurrentUpsertsCreateOneRow(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.UpsertPreview(ctx, "alice", domain.PreviewInput{
				CanonicalURL: "https://a.com/",
				OriginalURL:  "https://a.com",
				Meta:         domain.Metadata{Title: fmt.Sprintf("t%d", i)},
			})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	previews, err := repo.ListPreviews(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, previews, 1)
}

func TestBadgerRepository_UpsertPreviewRequiresCanonicalURL(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.UpsertPreview(context.Background(), "alice", domain.PreviewInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestBadgerRepository_SetImageAnalysisWritesOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, repo.SaveCapture(ctx, domain.Capture{
		ID: "img", UserID: "alice", Kind: domain.KindImage, URL: "https://a.com", Src: "https://a.com/i.png",
	}))
	require.NoError(t, repo.SaveCapture(ctx, domain.Capture{
		ID: "txt", UserID: "alice", Kind: domain.KindText, URL: "https://a.com", Content: "hi",
	}))

	require.NoError(t, repo.SetImageAnalysis(ctx, "alice", "img", "a cat", []float64{0.1, 0.2}))

	got, err := repo.GetCapture(ctx, "alice", "img")
	require.NoError(t, err)
	assert.Equal(t, "a cat", got.Caption)
	assert.Equal(t, []float64{0.1, 0.2}, got.ImageEmbedding)

	err = repo.SetImageAnalysis(ctx, "alice", "img", "a dog", []float64{0.3, 0.4})
	assert.ErrorIs(t, err, ErrAlreadyAnalyzed)

	err = repo.SetImageAnalysis(ctx, "alice", "txt", "x", []float64{1})
	assert.ErrorIs(t, err, domain.ErrInvalidCapture)

	err = repo.SetImageAnalysis(ctx, "alice", "missing", "x", []float64{1})
	assert.ErrorIs(t, err, domain.ErrNotFoundOrForbidden)
}

func TestBadgerRepository_UpsertTags(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	repo.now = fakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	ctx := context.Background()

	tags, err := repo.UpsertTags(ctx, "alice", []string{"  Foo", "foo", "BAR"})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "foo", tags[0].Name)
	assert.Equal(t, 1, tags[0].UseCount)
	assert.Equal(t, "bar", tags[1].Name)
	assert.Equal(t, 1, tags[1].UseCount)

	tags, err = repo.UpsertTags(ctx, "alice", []string{"FOO ", ""})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, 2, tags[0].UseCount, "pre-existing tag is incremented")

	stored, err := repo.ListTags(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "foo", stored[0].Name, "most recently used first")
	assert.Equal(t, 2, stored[0].UseCount)
	assert.Equal(t, "bar", stored[1].Name)

	empty, err := repo.UpsertTags(ctx, "alice", []string{"  "})
	require.NoError(t, err)
	assert.Empty(t, empty)

	bobs, err := repo.ListTags(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestBadgerRepository_RunGCStopsOnCancel(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		repo.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after cancellation")
	}
}
