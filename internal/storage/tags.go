package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"capturevault/internal/domain"
)

// UpsertTags normalizes names (trim, lower-case, dedup) and records one use
// of each: existing tags get UseCount+1, new tags start at 1, and both get a
// fresh LastUsedAt. The returned tags follow the first-seen order of names.
func (r *BadgerRepository) UpsertTags(ctx context.Context, userID string, names []string) ([]domain.Tag, error) {
	normalized := domain.NormalizeTagNames(names)
	if len(normalized) == 0 {
		return nil, nil
	}

	now := r.now()
	var tags []domain.Tag
	err := r.update(func(txn *badger.Txn) error {
		tags = tags[:0]
		for _, name := range normalized {
			key := tagKey(userID, name)
			tag := domain.Tag{UserID: userID, Name: name}
			if err := getJSON(txn, key, &tag); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("failed to load tag %q: %w", name, err)
			}
			tag.UseCount++
			tag.LastUsedAt = now
			if err := setJSON(txn, key, tag); err != nil {
				return err
			}
			tags = append(tags, tag)
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to upsert tags")
		return nil, fmt.Errorf("failed to upsert tags: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"user_id": userID,
		"tags":    normalized,
	}).Debug("Tags upserted")
	return tags, nil
}

// ListTags returns the user's tags, most recently used first, ties by name.
func (r *BadgerRepository) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, userPrefix(userID, "tag"), func(t domain.Tag) {
			tags = append(tags, t)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tags for user %s: %w", userID, err)
	}
	sort.Slice(tags, func(i, j int) bool {
		if !tags[i].LastUsedAt.Equal(tags[j].LastUsedAt) {
			return tags[i].LastUsedAt.After(tags[j].LastUsedAt)
		}
		return tags[i].Name < tags[j].Name
	})
	return tags, nil
}
