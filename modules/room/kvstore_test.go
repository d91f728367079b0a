package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

// fakeBucket is an in-memory bucket with JetStream revision semantics.
// Methods the snapshot store does not use panic through the nil embedded port.
type fakeBucket struct {
	kvjetstream.KVStoragePort

	mu       sync.Mutex
	values   map[string][]byte
	revs     map[string]uint64
	sequence uint64
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		values: make(map[string][]byte),
		revs:   make(map[string]uint64),
	}
}

func (b *fakeBucket) GetEntry(key string) (*kvjetstream.KVEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, ok := b.values[key]
	if !ok {
		return nil, kvjetstream.ErrKeyNotFound
	}
	return &kvjetstream.KVEntry{
		Bucket:   BucketName,
		Key:      key,
		Value:    append([]byte(nil), value...),
		Revision: b.revs[key],
	}, nil
}

func (b *fakeBucket) Create(key string, val []byte, _ time.Duration) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.values[key]; ok {
		return 0, kvjetstream.ErrKeyExists
	}
	return b.putLocked(key, val), nil
}

func (b *fakeBucket) Update(key string, val []byte, _ time.Duration, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.revs[key]
	if !ok {
		return 0, kvjetstream.ErrKeyNotFound
	}
	if current != revision {
		return 0, kvjetstream.ErrRevisionMismatch
	}
	return b.putLocked(key, val), nil
}

func (b *fakeBucket) delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	delete(b.revs, key)
}

func (b *fakeBucket) putLocked(key string, val []byte) uint64 {
	b.sequence++
	b.values[key] = append([]byte(nil), val...)
	b.revs[key] = b.sequence
	return b.sequence
}

func TestKVStore_Conflict(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()

	first := NewKVStore(bucket, DefaultSnapshotKey)
	second := NewKVStore(bucket, DefaultSnapshotKey)

	if _, err := first.Load(ctx); err != nil {
		t.Fatalf("first.Load() error = %v", err)
	}
	if _, err := second.Load(ctx); err != nil {
		t.Fatalf("second.Load() error = %v", err)
	}

	if err := first.Save(ctx, sampleRooms()); err != nil {
		t.Fatalf("first.Save() error = %v", err)
	}
	if err := second.Save(ctx, nil); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("second.Save() on existing key error = %v, want ErrSnapshotConflict", err)
	}

	if _, err := second.Load(ctx); err != nil {
		t.Fatalf("second.Load() error = %v", err)
	}
	if err := second.Save(ctx, sampleRooms()[:1]); err != nil {
		t.Fatalf("second.Save() after reload error = %v", err)
	}
	if err := first.Save(ctx, sampleRooms()); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("first.Save() on stale revision error = %v, want ErrSnapshotConflict", err)
	}
}

func TestKVStore_DeletedKeyIsRecreated(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	store := NewKVStore(bucket, DefaultSnapshotKey)

	if err := store.Save(ctx, sampleRooms()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	bucket.delete(DefaultSnapshotKey)

	if err := store.Save(ctx, sampleRooms()); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("Save() after delete error = %v, want ErrSnapshotConflict", err)
	}
	if err := store.Save(ctx, sampleRooms()[:1]); err != nil {
		t.Fatalf("Save() retry after delete error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Load() = %d rooms, want 1", len(got))
	}
}

func TestKVStore_ServiceRetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()

	first := setupService(t, NewKVStore(bucket, DefaultSnapshotKey), noSeedConfig())
	second := setupService(t, NewKVStore(bucket, DefaultSnapshotKey), noSeedConfig())

	a, err := first.CreateRoom(ctx, "u1", "From first", "")
	if err != nil {
		t.Fatalf("first.CreateRoom() error = %v", err)
	}
	b, err := second.CreateRoom(ctx, "u2", "From second", "")
	if err != nil {
		t.Fatalf("second.CreateRoom() error = %v", err)
	}

	rooms := second.ListRooms(ctx)
	if len(rooms) != 2 || rooms[0].ID != a.ID || rooms[1].ID != b.ID {
		t.Fatalf("second.ListRooms() = %+v, want both rooms", rooms)
	}

	// first still holds a stale revision; its next write merges and retries.
	if _, err := first.UpdateCode(ctx, "u1", a.ID, "let merged = true", 0); err != nil {
		t.Fatalf("first.UpdateCode() error = %v", err)
	}
	if first.Count() != 2 {
		t.Errorf("first.Count() = %d, want 2 after merge", first.Count())
	}

	reloaded := setupService(t, NewKVStore(bucket, DefaultSnapshotKey), noSeedConfig())
	got, err := reloaded.GetRoom(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if got.Code != "let merged = true" || reloaded.Count() != 2 {
		t.Errorf("persisted = %d rooms, code %q", reloaded.Count(), got.Code)
	}
}

func TestKVStore_ServiceSurvivesDeletedSnapshot(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	svc := setupService(t, NewKVStore(bucket, DefaultSnapshotKey), noSeedConfig())

	room, err := svc.CreateRoom(ctx, "u1", "Survivor", "")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	bucket.delete(DefaultSnapshotKey)

	if _, err := svc.UpdateCode(ctx, "u1", room.ID, "still here", 0); err != nil {
		t.Fatalf("UpdateCode() after snapshot deletion error = %v", err)
	}

	reloaded := setupService(t, NewKVStore(bucket, DefaultSnapshotKey), noSeedConfig())
	got, err := reloaded.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error = %v", err)
	}
	if got.Code != "still here" {
		t.Errorf("Code = %q, want %q", got.Code, "still here")
	}
}
