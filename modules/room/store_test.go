package room

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/example/codehuddle/domain/room"
	"github.com/example/codehuddle/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func sampleRooms() []domain.Room {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []domain.Room{
		domain.NewDemoRoom(created),
		{
			ID:       "r-abc123",
			Name:     "Pairing",
			OwnerID:  "u1",
			Code:     "print('hi')",
			Language: domain.LanguagePython,
			Participants: []user.User{
				{ID: "u1", Name: "Ada", Email: "ada@example.com"},
				{ID: "u2", Name: "Grace", Email: "grace@example.com", Avatar: "https://example.com/g.png"},
			},
			Messages: []domain.Message{
				{ID: "msg-1", SenderID: "u2", SenderName: "Grace", Content: "hello", Timestamp: created.Add(time.Minute)},
			},
			CreatedAt:       created,
			HasSubscription: true,
			MaxParticipants: domain.UnlimitedParticipants,
			Revision:        7,
		},
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLStore(setupTestDB(t), DefaultSnapshotKey),
		"kv":     NewKVStore(newFakeBucket(), DefaultSnapshotKey),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			empty, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() on empty store error = %v", err)
			}
			if empty == nil || len(empty) != 0 {
				t.Fatalf("Load() on empty store = %#v, want empty non-nil list", empty)
			}

			want := sampleRooms()
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Load() = %+v, want %+v", got, want)
			}

			// Overwrite with a shorter list.
			if err := store.Save(ctx, want[:1]); err != nil {
				t.Fatalf("second Save() error = %v", err)
			}
			got, err = store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(got) != 1 || got[0].ID != domain.DemoRoomID {
				t.Errorf("Load() after overwrite = %+v", got)
			}
		})
	}
}

func TestSQLStore_Conflict(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	first := NewSQLStore(db, DefaultSnapshotKey)
	second := NewSQLStore(db, DefaultSnapshotKey)

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
		t.Fatalf("second.Save() on stale insert error = %v, want ErrSnapshotConflict", err)
	}

	if _, err := second.Load(ctx); err != nil {
		t.Fatalf("second.Load() error = %v", err)
	}
	if err := second.Save(ctx, sampleRooms()[:1]); err != nil {
		t.Fatalf("second.Save() after reload error = %v", err)
	}
	if err := first.Save(ctx, sampleRooms()); !errors.Is(err, ErrSnapshotConflict) {
		t.Fatalf("first.Save() on stale update error = %v, want ErrSnapshotConflict", err)
	}
}

func TestSQLStore_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	a := NewSQLStore(db, "rooms-a")
	b := NewSQLStore(db, "rooms-b")

	if err := a.Save(ctx, sampleRooms()); err != nil {
		t.Fatalf("a.Save() error = %v", err)
	}
	got, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("b.Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("b.Load() = %d rooms, want 0", len(got))
	}
}

func TestService_RetriesAfterSnapshotConflict(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	first := setupService(t, NewSQLStore(db, DefaultSnapshotKey), noSeedConfig())
	second := setupService(t, NewSQLStore(db, DefaultSnapshotKey), noSeedConfig())

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

	reloaded := setupService(t, NewSQLStore(db, DefaultSnapshotKey), noSeedConfig())
	if reloaded.Count() != 2 {
		t.Errorf("persisted rooms = %d, want 2", reloaded.Count())
	}
}

func TestDecodeRooms(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "empty", data: "", want: 0},
		{name: "null", data: "null", want: 0},
		{name: "empty array", data: " [] ", want: 0},
		{name: "one room", data: `[{"id":"r-abc123","name":"x"}]`, want: 1},
		{name: "garbage", data: "{", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRooms([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeRooms() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got == nil || len(got) != tt.want {
				t.Errorf("decodeRooms() = %#v, want %d rooms", got, tt.want)
			}
			for _, r := range got {
				if r.Participants == nil || r.Messages == nil {
					t.Errorf("decodeRooms() left nil slices in %+v", r)
				}
			}
		})
	}
}
