package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/codehuddle/domain/room"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRecord is the GORM model holding a serialized room list.
type SnapshotRecord struct {
	Name      string `gorm:"primaryKey;type:text"`
	Payload   string `gorm:"not null;type:text"`
	Version   uint64 `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the table name for the SnapshotRecord entity.
func (SnapshotRecord) TableName() string {
	return "room_snapshots"
}

// SQLStore persists the room snapshot in a SQL table through GORM.
// Writes compare-and-set on the record version.
type SQLStore struct {
	db      *gorm.DB
	key     string
	mu      sync.Mutex
	version uint64
}

// NewSQLStore creates a SQLStore. The table must already be migrated.
func NewSQLStore(db *gorm.DB, key string) *SQLStore {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &SQLStore{
		db:  db,
		key: key,
	}
}

// Load reads the snapshot and remembers its version.
func (s *SQLStore) Load(ctx context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record SnapshotRecord
	result := s.db.WithContext(ctx).First(&record, "name = ?", s.key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			s.version = 0
			return []domain.Room{}, nil
		}
		return nil, fmt.Errorf("failed to read room snapshot: %w", result.Error)
	}

	rooms, err := decodeRooms([]byte(record.Payload))
	if err != nil {
		return nil, err
	}
	s.version = record.Version
	return rooms, nil
}

// Save writes the snapshot if nobody else wrote it since the last Load or Save.
func (s *SQLStore) Save(ctx context.Context, rooms []domain.Room) error {
	data, err := encodeRooms(rooms)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	now := time.Now()

	if s.version == 0 {
		record := SnapshotRecord{
			Name:      s.key,
			Payload:   string(data),
			Version:   1,
			UpdatedAt: now,
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if result.Error != nil {
			return fmt.Errorf("failed to write room snapshot: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSnapshotConflict
		}
		s.version = 1
		return nil
	}

	result := db.Model(&SnapshotRecord{}).
		Where("name = ? AND version = ?", s.key, s.version).
		Updates(map[string]any{
			"payload":    string(data),
			"version":    s.version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to write room snapshot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSnapshotConflict
	}
	s.version++
	return nil
}
