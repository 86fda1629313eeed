package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/wricardo/mcp-training/memorygame/game/service"
)

const sessionBucket = "sessions"

var errBucketMissing = errors.New("sessions bucket is missing")

// BoltPersistence implements SessionPersistence on an embedded BoltDB file
type BoltPersistence struct {
	db    *bbolt.DB
	codec sessionCodec
}

// NewBoltPersistence opens a BoltDB-backed session store at path
func NewBoltPersistence(path string, configManager service.ConfigManager) (*BoltPersistence, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if configManager == nil {
		return nil, fmt.Errorf("config manager is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucket)); err != nil {
			return fmt.Errorf("create sessions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltPersistence{
		db:    db,
		codec: sessionCodec{configs: configManager},
	}, nil
}

// Close closes the underlying BoltDB database
func (bp *BoltPersistence) Close() error {
	if bp == nil || bp.db == nil {
		return nil
	}
	return bp.db.Close()
}

// Save writes the session record
func (bp *BoltPersistence) Save(session *service.Session) error {
	payload, err := bp.codec.encode(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	return bp.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.Put([]byte(session.ID), payload)
	})
}

// Load reads and decodes a session record
func (bp *BoltPersistence) Load(id string) (*service.Session, error) {
	var payload []byte
	err := bp.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return errBucketMissing
		}
		stored := bucket.Get([]byte(id))
		if stored == nil {
			return ErrSessionNotFound
		}
		// values are only valid inside the transaction
		payload = append([]byte(nil), stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return bp.codec.decode(id, payload)
}

// Delete removes a session record
func (bp *BoltPersistence) Delete(id string) error {
	return bp.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return errBucketMissing
		}
		if bucket.Get([]byte(id)) == nil {
			return ErrSessionNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

// ListAll returns every stored session id
func (bp *BoltPersistence) ListAll() ([]string, error) {
	var sessionIDs []string
	err := bp.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.ForEach(func(k, _ []byte) error {
			sessionIDs = append(sessionIDs, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessionIDs, nil
}

// Exists checks whether a session record is present
func (bp *BoltPersistence) Exists(id string) bool {
	found := false
	_ = bp.db.View(func(tx *bbolt.Tx) error {
		if bucket := tx.Bucket([]byte(sessionBucket)); bucket != nil {
			found = bucket.Get([]byte(id)) != nil
		}
		return nil
	})
	return found
}
