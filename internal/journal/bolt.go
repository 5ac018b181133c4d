package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltJournal persists entries in BoltDB, one nested bucket per session
// keyed by a monotonically increasing sequence.
type BoltJournal struct {
	db *bolt.DB
}

// ErrLocked is returned when another process holds the journal file
var ErrLocked = errors.New("journal is locked by another process")

// DefaultLockTimeout bounds the wait for the journal file lock
const DefaultLockTimeout = 5 * time.Second

// NewBoltJournal opens or creates the journal file at path. bbolt allows
// one process per file; if the lock is not granted within lockTimeout the
// error wraps ErrLocked.
func NewBoltJournal(path string, lockTimeout time.Duration) (*BoltJournal, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: lockTimeout,
	})
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketSessions, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltJournal{db: db}, nil
}

func (j *BoltJournal) Record(ctx context.Context, sessionID string, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketSessions).CreateBucketIfNotExists([]byte(sessionID))
		if err != nil {
			return fmt.Errorf("failed to create session bucket: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		if err := b.Put(sequenceKey(seq), data); err != nil {
			return fmt.Errorf("failed to store journal entry: %w", err)
		}
		return nil
	})
}

func (j *BoltJournal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	var entries []Entry

	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket([]byte(sessionID))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal journal entry: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})

	return entries, err
}

func (j *BoltJournal) Clear(ctx context.Context, sessionID string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketSessions).DeleteBucket([]byte(sessionID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (j *BoltJournal) Sessions(ctx context.Context) ([]string, error) {
	var ids []string

	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			// nested buckets have nil values
			if v == nil {
				ids = append(ids, string(k))
			}
			return nil
		})
	})

	return ids, err
}

// DB exposes the underlying handle for sharing the file with other buckets
func (j *BoltJournal) DB() *bolt.DB {
	return j.db
}

func (j *BoltJournal) Close() error {
	return j.db.Close()
}

// sequenceKey encodes seq big-endian so cursor order is insertion order
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
