package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"capturevault/internal/domain"
)

// maxTxnAttempts bounds retries of update transactions that lose a
// conflict against a concurrent writer.
const maxTxnAttempts = 3

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db    *badger.DB
	log   logrus.FieldLogger
	locks *keyLocks
	now   func() time.Time
}

var _ Repository = (*BadgerRepository)(nil)

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:    db,
		log:   logger.WithField("component", "repository"),
		locks: &keyLocks{},
		now:   time.Now,
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	err := r.db.Close()
	if err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
// A non-positive interval selects ten minutes.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// One call rewrites at most one file; repeat until nothing is left.
			rewrites := 0
			var err error
			for err == nil {
				if err = r.db.RunValueLogGC(0.7); err == nil {
					rewrites++
				}
			}
			switch {
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.WithField("rewrites", rewrites).Debug("BadgerDB GC finished")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// Keys. User ids are query-escaped so a ':' inside an id cannot collide with
// another user's prefix.
//
//	user:{uid}:capture:{id}            -> Capture
//	user:{uid}:preview:{id}            -> LinkPreview
//	user:{uid}:preview_url:{canonical} -> preview id
//	user:{uid}:tag:{name}              -> Tag

func userPrefix(userID, kind string) []byte {
	return []byte(fmt.Sprintf("user:%s:%s:", url.QueryEscape(userID), kind))
}

func captureKey(userID, id string) []byte {
	return append(userPrefix(userID, "capture"), id...)
}

func previewKey(userID, id string) []byte {
	return append(userPrefix(userID, "preview"), id...)
}

func previewURLKey(userID, canonicalURL string) []byte {
	return append(userPrefix(userID, "preview_url"), canonicalURL...)
}

func tagKey(userID, name string) []byte {
	return append(userPrefix(userID, "tag"), name...)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (r *BadgerRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return txn.SetEntry(badger.NewEntry(key, b))
}

// scanPrefix decodes every value under prefix and hands it to fn.
func scanPrefix[T any](txn *badger.Txn, prefix []byte, fn func(T)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("failed to unmarshal data for key %s: %w", string(item.Key()), err)
		}
		fn(v)
	}
	return nil
}

// SaveCapture stores or overwrites a capture.
func (r *BadgerRepository) SaveCapture(ctx context.Context, c domain.Capture) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id":    c.UserID,
		"capture_id": c.ID,
		"kind":       c.Kind,
	})

	if c.UserID == "" || c.ID == "" {
		return fmt.Errorf("%w: capture needs an id and an owner", domain.ErrInvalidCapture)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = r.now()
	}

	key := captureKey(c.UserID, c.ID)
	unlock := r.locks.lock(key)
	defer unlock()

	err := r.update(func(txn *badger.Txn) error {
		return setJSON(txn, key, c)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save capture to BadgerDB")
		return fmt.Errorf("failed to save capture: %w", err)
	}

	log.Info("Capture saved successfully")
	return nil
}

// GetCapture loads one capture of userID.
func (r *BadgerRepository) GetCapture(ctx context.Context, userID, id string) (*domain.Capture, error) {
	var c domain.Capture
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, captureKey(userID, id), &c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) || (err == nil && c.UserID != userID) {
		return nil, fmt.Errorf("capture %s: %w", id, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture %s: %w", id, err)
	}
	return &c, nil
}

// ListCaptures retrieves the user's captures, newest first.
func (r *BadgerRepository) ListCaptures(ctx context.Context, userID string, kinds ...domain.CaptureKind) ([]domain.Capture, error) {
	return r.ListCapturesInCategory(ctx, userID, "", kinds...)
}

// ListCapturesInCategory retrieves the user's captures of one category,
// newest first.
func (r *BadgerRepository) ListCapturesInCategory(ctx context.Context, userID, category string, kinds ...domain.CaptureKind) ([]domain.Capture, error) {
	log := r.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"category": category,
	})

	var captures []domain.Capture
	err := r.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, userPrefix(userID, "capture"), func(c domain.Capture) {
			if (category == "" || c.Category == category) && matchesKind(c.Kind, kinds) {
				captures = append(captures, c)
			}
		})
	})
	if err != nil {
		log.WithError(err).Error("Failed to retrieve captures from BadgerDB")
		return nil, fmt.Errorf("failed to list captures for user %s: %w", userID, err)
	}

	sort.SliceStable(captures, func(i, j int) bool {
		return captures[i].Timestamp.After(captures[j].Timestamp)
	})

	log.WithField("capture_count", len(captures)).Debug("Captures retrieved successfully")
	return captures, nil
}

func matchesKind(k domain.CaptureKind, kinds []domain.CaptureKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// DeleteCapture removes a capture owned by userID.
func (r *BadgerRepository) DeleteCapture(ctx context.Context, userID, id string) error {
	log := r.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"capture_id": id,
	})

	key := captureKey(userID, id)
	unlock := r.locks.lock(key)
	defer unlock()

	err := r.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		log.Warn("Attempted to delete non-existent capture")
		return fmt.Errorf("capture %s: %w", id, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete capture from BadgerDB")
		return fmt.Errorf("failed to delete capture %s for user %s: %w", id, userID, err)
	}

	log.Info("Capture deleted successfully")
	return nil
}

// AttachPreview points a capture at previewID.
func (r *BadgerRepository) AttachPreview(ctx context.Context, userID, captureID, previewID string) error {
	return r.patchCapture(userID, captureID, func(c *domain.Capture) error {
		c.LinkPreviewID = previewID
		return nil
	})
}

// SetImageAnalysis stores caption and embedding on a visual capture once.
func (r *BadgerRepository) SetImageAnalysis(ctx context.Context, userID, captureID, caption string, embedding []float64) error {
	return r.patchCapture(userID, captureID, func(c *domain.Capture) error {
		if !c.Kind.IsVisual() {
			return fmt.Errorf("%w: %s captures carry no image analysis", domain.ErrInvalidCapture, c.Kind)
		}
		if c.Caption != "" || len(c.ImageEmbedding) > 0 {
			return ErrAlreadyAnalyzed
		}
		c.Caption = caption
		c.ImageEmbedding = append([]float64(nil), embedding...)
		return nil
	})
}

// patchCapture applies fn to a stored capture in one transaction.
func (r *BadgerRepository) patchCapture(userID, captureID string, fn func(c *domain.Capture) error) error {
	key := captureKey(userID, captureID)
	unlock := r.locks.lock(key)
	defer unlock()

	err := r.update(func(txn *badger.Txn) error {
		var c domain.Capture
		if err := getJSON(txn, key, &c); err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		return setJSON(txn, key, c)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("capture %s: %w", captureID, domain.ErrNotFoundOrForbidden)
	}
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"capture_id": captureID,
		}).Warn("Failed to update capture")
		return fmt.Errorf("failed to update capture %s: %w", captureID, err)
	}
	return nil
}

// keyLocks serializes read-modify-write sequences per key. Distinct keys may
// share a stripe, which only costs parallelism.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (l *keyLocks) lock(key []byte) func() {
	m := &l.stripes[xxhash.Sum64(key)%uint64(len(l.stripes))]
	m.Lock()
	return m.Unlock
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
