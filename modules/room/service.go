package room

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	domain "github.com/example/codehuddle/domain/room"
	"github.com/example/codehuddle/domain/user"
	"github.com/example/codehuddle/modules/auth"
	"github.com/google/uuid"
)

// maxCommitAttempts bounds merge-and-retry rounds after a snapshot conflict.
const maxCommitAttempts = 3

// DefaultMaxHistory is the number of most recent messages kept per room.
const DefaultMaxHistory = 500

// Identity resolves the acting user of a room operation.
type Identity interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
}

// Config holds room service configuration.
type Config struct {
	// MaxParticipants is the cap applied to newly created, unsubscribed rooms.
	MaxParticipants int
	// MaxHistory is the number of most recent messages kept per room. 0 keeps everything.
	MaxHistory int
	// SeedDemoRoom adds the workshop room when the persisted list is empty.
	SeedDemoRoom bool
	// MaxSnapshotBytes bounds the encoded room list. Values outside
	// (0, DefaultMaxSnapshotBytes] use DefaultMaxSnapshotBytes.
	MaxSnapshotBytes int
}

// DefaultConfig returns the default room configuration.
func DefaultConfig() Config {
	return Config{
		MaxParticipants:  domain.DefaultMaxParticipants,
		MaxHistory:       DefaultMaxHistory,
		SeedDemoRoom:     true,
		MaxSnapshotBytes: DefaultMaxSnapshotBytes,
	}
}

// Service is the authoritative room list. Every mutation is computed on a copy,
// written to the Store and only then made visible.
type Service struct {
	mu       sync.Mutex
	rooms    []domain.Room
	store    Store
	identity Identity
	config   Config
	now      func() time.Time
	newID    func() (string, error)
}

// NewService creates a new room service.
func NewService(store Store, identity Identity, config Config) *Service {
	if config.MaxParticipants <= 0 {
		config.MaxParticipants = domain.DefaultMaxParticipants
	}
	if config.MaxHistory < 0 {
		config.MaxHistory = 0
	}
	if config.MaxSnapshotBytes <= 0 || config.MaxSnapshotBytes > DefaultMaxSnapshotBytes {
		config.MaxSnapshotBytes = DefaultMaxSnapshotBytes
	}
	return &Service{
		rooms:    []domain.Room{},
		store:    store,
		identity: identity,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    NewRoomID,
	}
}

// Load replaces the in-memory list with the persisted one and seeds the demo room
// when nothing was persisted yet.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	s.rooms = rooms

	if len(rooms) > 0 || !s.config.SeedDemoRoom {
		return nil
	}
	return s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		if indexOf(rooms, domain.DemoRoomID) >= 0 {
			return nil, nil
		}
		return append(rooms, domain.NewDemoRoom(s.now())), nil
	})
}

// CreateRoom creates a room owned by the user, who becomes its only participant.
func (s *Service) CreateRoom(ctx context.Context, userID, name, language string) (*domain.Room, error) {
	creator, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if err := ValidateRoomName(name); err != nil {
		return nil, err
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = domain.DefaultLanguage
	}
	if err := ValidateLanguage(language); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created domain.Room
	err = s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		id, err := s.uniqueID(rooms)
		if err != nil {
			return nil, err
		}
		created = domain.Room{
			ID:              id,
			Name:            name,
			OwnerID:         creator.ID,
			Code:            domain.DefaultCode(name),
			Language:        language,
			Participants:    []user.User{*creator},
			Messages:        []domain.Message{},
			CreatedAt:       s.now(),
			HasSubscription: false,
			MaxParticipants: s.config.MaxParticipants,
			Revision:        1,
		}
		return append(rooms, created), nil
	})
	if err != nil {
		return nil, err
	}

	result := created.Clone()
	return &result, nil
}

// JoinRoom adds the user to the room's participants and reports whether the
// user was added. Rooms persisted by another writer are merged in before the
// lookup. Joining a room the user already participates in returns the room
// unchanged and false.
func (s *Service) JoinRoom(ctx context.Context, userID, roomID string) (*domain.Room, bool, error) {
	joiner, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mergeLocked(ctx); err != nil {
		return nil, false, err
	}

	var (
		joined domain.Room
		added  bool
	)
	err = s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		added = false
		i := indexOf(rooms, roomID)
		if i < 0 {
			return nil, ErrRoomNotFound
		}
		room := rooms[i].Clone()
		if room.HasParticipant(joiner.ID) {
			joined = room
			return nil, nil
		}
		if room.IsFull() {
			return nil, &LimitError{Max: room.MaxParticipants}
		}
		room.Participants = append(room.Participants, *joiner)
		room.Revision++
		rooms[i] = room
		joined = room
		added = true
		return rooms, nil
	})
	if err != nil {
		return nil, false, err
	}

	result := joined.Clone()
	return &result, added, nil
}

// SendMessage appends a chat message from a participant to the room.
func (s *Service) SendMessage(ctx context.Context, userID, roomID, content string) (*domain.Message, uint64, error) {
	sender, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, 0, err
	}
	content = strings.TrimSpace(content)
	if err := ValidateMessage(content); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sent     domain.Message
		revision uint64
	)
	err = s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		i := indexOf(rooms, roomID)
		if i < 0 {
			return nil, ErrRoomNotFound
		}
		room := rooms[i].Clone()
		if !room.HasParticipant(sender.ID) {
			return nil, ErrNotParticipant
		}
		sent = domain.Message{
			ID:         "msg-" + uuid.New().String(),
			SenderID:   sender.ID,
			SenderName: sender.Name,
			Content:    content,
			Timestamp:  s.now(),
		}
		room.Messages = append(room.Messages, sent)
		if s.config.MaxHistory > 0 && len(room.Messages) > s.config.MaxHistory {
			room.Messages = slices.Clone(room.Messages[len(room.Messages)-s.config.MaxHistory:])
		}
		room.Revision++
		rooms[i] = room
		revision = room.Revision
		return rooms, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return &sent, revision, nil
}

// UpdateCode replaces the room's code. A non-zero baseRevision must match the
// room's current revision; zero means last write wins.
func (s *Service) UpdateCode(ctx context.Context, userID, roomID, code string, baseRevision uint64) (*domain.Room, error) {
	editor, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated domain.Room
	err = s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		i := indexOf(rooms, roomID)
		if i < 0 {
			return nil, ErrRoomNotFound
		}
		room := rooms[i].Clone()
		if !room.HasParticipant(editor.ID) {
			return nil, ErrNotParticipant
		}
		if baseRevision != 0 && baseRevision != room.Revision {
			return nil, fmt.Errorf("%w: base revision %d, current revision %d",
				ErrRevisionConflict, baseRevision, room.Revision)
		}
		room.Code = code
		room.Revision++
		rooms[i] = room
		updated = room
		return rooms, nil
	})
	if err != nil {
		return nil, err
	}

	result := updated.Clone()
	return &result, nil
}

// UpgradeSubscription marks the room as subscribed and removes its participant cap.
// Only the owner may upgrade. Upgrading a subscribed room is a no-op.
func (s *Service) UpgradeSubscription(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	requester, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var upgraded domain.Room
	err = s.mutateLocked(ctx, func(rooms []domain.Room) ([]domain.Room, error) {
		i := indexOf(rooms, roomID)
		if i < 0 {
			return nil, ErrRoomNotFound
		}
		room := rooms[i].Clone()
		if !room.IsOwner(requester.ID) {
			return nil, ErrNotOwner
		}
		if room.HasSubscription && room.MaxParticipants == domain.UnlimitedParticipants {
			upgraded = room
			return nil, nil
		}
		room.HasSubscription = true
		room.MaxParticipants = domain.UnlimitedParticipants
		room.Revision++
		rooms[i] = room
		upgraded = room
		return rooms, nil
	})
	if err != nil {
		return nil, err
	}

	result := upgraded.Clone()
	return &result, nil
}

// GetRoom returns a copy of the room.
func (s *Service) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	roomID, err := normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.rooms, roomID)
	if i < 0 {
		return nil, ErrRoomNotFound
	}
	room := s.rooms[i].Clone()
	return &room, nil
}

// ListRooms returns copies of all rooms in creation order.
func (s *Service) ListRooms(_ context.Context) []domain.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	return rooms
}

// History returns up to limit of the room's most recent messages, oldest first.
// A non-positive limit returns the full history.
func (s *Service) History(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	roomID, err := normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.rooms, roomID)
	if i < 0 {
		return nil, ErrRoomNotFound
	}

	messages := s.rooms[i].Messages
	if limit <= 0 || limit > len(messages) {
		limit = len(messages)
	}
	result := make([]domain.Message, limit)
	copy(result, messages[len(messages)-limit:])
	return result, nil
}

// Preview renders the room's code as an HTML document. Only subscribed rooms
// have previews.
func (s *Service) Preview(ctx context.Context, roomID string) (string, *domain.Room, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return "", nil, err
	}
	if !room.HasSubscription {
		return "", room, ErrPreviewLocked
	}
	return BuildPreview(room.Language, room.Code), room, nil
}

// Count returns the number of rooms.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// resolveUser looks up the acting user through the identity collaborator.
func (s *Service) resolveUser(ctx context.Context, userID string) (*user.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if s.identity == nil {
		return nil, fmt.Errorf("%w: no identity provider configured", ErrUnauthenticated)
	}
	u, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		if isIdentityRejection(err) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if u == nil || u.ID == "" {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// identityRejections are the identity errors that mean the caller is not a known user.
var identityRejections = []error{
	auth.ErrUserNotFound,
	auth.ErrInvalidToken,
	auth.ErrExpiredToken,
	auth.ErrRevokedToken,
	auth.ErrInvalidCredentials,
}

func isIdentityRejection(err error) bool {
	for _, rejection := range identityRejections {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// mutateLocked applies fn to a copy of the room list and persists the result.
// fn returns a nil list when nothing changed. On a snapshot conflict the
// persisted list is merged in and fn is applied again. Callers hold s.mu.
func (s *Service) mutateLocked(ctx context.Context, fn func(rooms []domain.Room) ([]domain.Room, error)) error {
	for attempt := 1; ; attempt++ {
		next, err := fn(slices.Clone(s.rooms))
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		if err := s.checkSnapshotSize(next); err != nil {
			return err
		}

		err = s.store.Save(ctx, next)
		if err == nil {
			s.rooms = next
			return nil
		}
		if !errors.Is(err, ErrSnapshotConflict) || attempt == maxCommitAttempts {
			return fmt.Errorf("failed to persist rooms: %w", err)
		}
		if err := s.mergeLocked(ctx); err != nil {
			return err
		}
	}
}

// checkSnapshotSize rejects a room list whose encoding exceeds the snapshot budget.
func (s *Service) checkSnapshotSize(rooms []domain.Room) error {
	data, err := encodeRooms(rooms)
	if err != nil {
		return err
	}
	if len(data) > s.config.MaxSnapshotBytes {
		return fmt.Errorf("%w: %d bytes, limit %d bytes", ErrSnapshotTooLarge, len(data), s.config.MaxSnapshotBytes)
	}
	return nil
}

// mergeLocked adopts rooms persisted by other writers. Callers hold s.mu.
func (s *Service) mergeLocked(ctx context.Context) error {
	persisted, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	s.rooms = mergeRooms(s.rooms, persisted)
	return nil
}

// uniqueID generates a room id not used by any room in the list.
func (s *Service) uniqueID(rooms []domain.Room) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID()
		if err != nil {
			return "", err
		}
		if indexOf(rooms, id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique room id after %d attempts", maxIDAttempts)
}

// mergeRooms combines the in-memory and persisted lists. Rooms only present in
// the store are appended; for rooms in both the higher revision wins and ties
// keep the in-memory copy.
func mergeRooms(current, persisted []domain.Room) []domain.Room {
	merged := slices.Clone(current)
	if merged == nil {
		merged = []domain.Room{}
	}
	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.ID] = i
	}
	for _, r := range persisted {
		if i, ok := index[r.ID]; ok {
			if r.Revision > merged[i].Revision {
				merged[i] = r
			}
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

func indexOf(rooms []domain.Room, id string) int {
	return slices.IndexFunc(rooms, func(r domain.Room) bool {
		return r.ID == id
	})
}
