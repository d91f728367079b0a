package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/example/codehuddle/domain/room"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// KVStore persists the room snapshot in a kv-jetstream bucket.
// Writes are conditional on the entry revision seen by the last Load or Save.
type KVStore struct {
	bucket   kvjetstream.KVStoragePort
	key      string
	mu       sync.Mutex
	revision uint64
}

// NewKVStore creates a KVStore over the given bucket.
func NewKVStore(bucket kvjetstream.KVStoragePort, key string) *KVStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &KVStore{
		bucket: bucket,
		key:    key,
	}
}

// Load reads the snapshot and remembers its revision.
func (s *KVStore) Load(_ context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.bucket.GetEntry(s.key)
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			s.revision = 0
			return []domain.Room{}, nil
		}
		return nil, fmt.Errorf("failed to read room snapshot: %w", err)
	}

	rooms, err := decodeRooms(entry.Value)
	if err != nil {
		return nil, err
	}
	s.revision = entry.Revision
	return rooms, nil
}

// Save writes the snapshot with optimistic locking on the entry revision.
// Any write the bucket refuses because of a concurrent change or deletion
// returns ErrSnapshotConflict.
func (s *KVStore) Save(_ context.Context, rooms []domain.Room) error {
	data, err := encodeRooms(rooms)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var revision uint64
	if s.revision == 0 {
		revision, err = s.bucket.Create(s.key, data, 0)
	} else {
		revision, err = s.bucket.Update(s.key, data, 0, s.revision)
	}
	if err != nil {
		switch {
		case errors.Is(err, kvjetstream.ErrKeyExists), errors.Is(err, kvjetstream.ErrRevisionMismatch):
			return ErrSnapshotConflict
		case errors.Is(err, kvjetstream.ErrKeyNotFound):
			// The snapshot was deleted; the next attempt recreates it.
			s.revision = 0
			return ErrSnapshotConflict
		}
		return fmt.Errorf("failed to write room snapshot: %w", err)
	}

	s.revision = revision
	return nil
}
