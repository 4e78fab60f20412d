package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"capturevault/internal/domain"
)

// UpsertPreview looks the preview up by (userID, canonical URL) and patches it
// in place, or inserts it with CreatedAt = UpdatedAt = now. The lookup and the
// write share one transaction under a per-key lock, so concurrent upserts of
// the same URL never create a second row.
func (r *BadgerRepository) UpsertPreview(ctx context.Context, userID string, in domain.PreviewInput) (string, error) {
	log := r.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"canonical_url": in.CanonicalURL,
	})

	if in.CanonicalURL == "" {
		return "", fmt.Errorf("%w: empty canonical url", domain.ErrInvalidURL)
	}

	indexKey := previewURLKey(userID, in.CanonicalURL)
	unlock := r.locks.lock(indexKey)
	defer unlock()

	now := r.now()
	var (
		id      string
		created bool
	)
	err := r.update(func(txn *badger.Txn) error {
		created = false
		var p domain.LinkPreview

		item, err := txn.Get(indexKey)
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id = string(raw)
			err = getJSON(txn, previewKey(userID, id), &p)
			if errors.Is(err, badger.ErrKeyNotFound) {
				// Dangling index entry: rebuild the row under the same id.
				p, created = newPreview(id, userID, in.CanonicalURL, now), true
			} else if err != nil {
				return fmt.Errorf("failed to load preview %s: %w", id, err)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			id = uuid.NewString()
			p, created = newPreview(id, userID, in.CanonicalURL, now), true
			if err := txn.Set(indexKey, []byte(id)); err != nil {
				return err
			}
		default:
			return err
		}

		p.Apply(in)
		p.UpdatedAt = now
		p.LastCheckedAt = now
		return setJSON(txn, previewKey(userID, id), p)
	})
	if err != nil {
		log.WithError(err).Error("Failed to upsert link preview")
		return "", fmt.Errorf("failed to upsert preview: %w", err)
	}

	log.WithFields(logrus.Fields{
		"preview_id": id,
		"created":    created,
	}).Info("Link preview upserted")
	return id, nil
}

func newPreview(id, userID, canonicalURL string, now time.Time) domain.LinkPreview {
	return domain.LinkPreview{
		ID:           id,
		UserID:       userID,
		CanonicalURL: canonicalURL,
		ContentType:  domain.ContentWebsite,
		CreatedAt:    now,
	}
}

// GetPreview loads one preview of userID.
func (r *BadgerRepository) GetPreview(ctx context.Context, userID, id string) (*domain.LinkPreview, error) {
	var p domain.LinkPreview
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, previewKey(userID, id), &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && p.UserID != userID) {
		return nil, fmt.Errorf("preview %s: %w", id, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preview %s: %w", id, err)
	}
	return &p, nil
}

// GetPreviewByCanonicalURL resolves the unique index and loads the preview.
func (r *BadgerRepository) GetPreviewByCanonicalURL(ctx context.Context, userID, canonicalURL string) (*domain.LinkPreview, error) {
	var p domain.LinkPreview
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(previewURLKey(userID, canonicalURL))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, previewKey(userID, string(id)), &p)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("preview for %s: %w", canonicalURL, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preview for %s: %w", canonicalURL, err)
	}
	return &p, nil
}

// ListPreviews returns every preview of userID, newest first.
func (r *BadgerRepository) ListPreviews(ctx context.Context, userID string) ([]domain.LinkPreview, error) {
	var previews []domain.LinkPreview
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, userPrefix(userID, "preview"), func(p domain.LinkPreview) {
			previews = append(previews, p)
		})
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to retrieve previews from BadgerDB")
		return nil, fmt.Errorf("failed to list previews for user %s: %w", userID, err)
	}
	sort.SliceStable(previews, func(i, j int) bool {
		return previews[i].CreatedAt.After(previews[j].CreatedAt)
	})
	return previews, nil
}
