package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	domain "github.com/example/codehuddle/domain/room"
)

// DefaultSnapshotKey is the key the serialized room list is stored under.
const DefaultSnapshotKey = "rooms"

// Store persists the whole room list as a single snapshot.
type Store interface {
	// Load returns the persisted room list, or an empty list when nothing was saved yet.
	Load(ctx context.Context) ([]domain.Room, error)
	// Save replaces the persisted room list. Implementations return ErrSnapshotConflict
	// when the snapshot changed since the last Load or Save.
	Save(ctx context.Context, rooms []domain.Room) error
}

// encodeRooms serializes the room list as a JSON array.
func encodeRooms(rooms []domain.Room) ([]byte, error) {
	if rooms == nil {
		rooms = []domain.Room{}
	}
	data, err := json.Marshal(rooms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rooms: %w", err)
	}
	return data, nil
}

// decodeRooms parses a serialized room list. Empty input yields an empty list.
func decodeRooms(data []byte) ([]domain.Room, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []domain.Room{}, nil
	}
	var rooms []domain.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	for i := range rooms {
		rooms[i] = rooms[i].Clone()
	}
	return rooms, nil
}

// MemoryStore keeps the encoded snapshot in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the stored snapshot.
func (s *MemoryStore) Load(_ context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeRooms(s.data)
}

// Save encodes and stores the snapshot.
func (s *MemoryStore) Save(_ context.Context, rooms []domain.Room) error {
	data, err := encodeRooms(rooms)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}
