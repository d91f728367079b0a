package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	roomdomain "github.com/example/codehuddle/domain/room"
	userdomain "github.com/example/codehuddle/domain/user"
	"github.com/example/codehuddle/modules/broadcast"
	"github.com/example/codehuddle/modules/room"
)

var errNotImplemented = errors.New("not implemented")

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	signUpFunc        func(ctx context.Context, email, password, fullName string) (*userdomain.Session, error)
	signInFunc        func(ctx context.Context, email, password string) (*userdomain.Session, error)
	signOutFunc       func(ctx context.Context, accessToken, refreshToken string) error
	getSessionFunc    func(ctx context.Context, accessToken string) (*userdomain.User, error)
	refreshFunc       func(ctx context.Context, refreshToken string) (*userdomain.Session, error)
	validateTokenFunc func(ctx context.Context, token string) (*userdomain.Claims, error)
	getUserFunc       func(ctx context.Context, userID string) (*userdomain.User, error)
}

func (m *mockAuthPort) SignUp(ctx context.Context, email, password, fullName string) (*userdomain.Session, error) {
	if m.signUpFunc != nil {
		return m.signUpFunc(ctx, email, password, fullName)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) SignIn(ctx context.Context, email, password string) (*userdomain.Session, error) {
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, accessToken, refreshToken)
	}
	return errNotImplemented
}

func (m *mockAuthPort) GetSession(ctx context.Context, accessToken string) (*userdomain.User, error) {
	if m.getSessionFunc != nil {
		return m.getSessionFunc(ctx, accessToken)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) Refresh(ctx context.Context, refreshToken string) (*userdomain.Session, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) ValidateToken(ctx context.Context, token string) (*userdomain.Claims, error) {
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx, token)
	}
	return nil, errNotImplemented
}

func (m *mockAuthPort) GetUser(ctx context.Context, userID string) (*userdomain.User, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

// mockRoomPort implements room.RoomPort for testing
type mockRoomPort struct {
	createRoomFunc          func(ctx context.Context, userID, name, language string) (*roomdomain.Room, error)
	joinRoomFunc            func(ctx context.Context, userID, roomID string) (*roomdomain.Room, error)
	sendMessageFunc         func(ctx context.Context, userID, roomID, content string) (*room.MessageResponse, error)
	updateCodeFunc          func(ctx context.Context, userID, roomID, code string, baseRevision uint64) (*roomdomain.Room, error)
	upgradeSubscriptionFunc func(ctx context.Context, userID, roomID string) (*roomdomain.Room, error)
	getRoomFunc             func(ctx context.Context, roomID string) (*roomdomain.Room, error)
	listRoomsFunc           func(ctx context.Context) ([]roomdomain.Room, error)
	getHistoryFunc          func(ctx context.Context, roomID string, limit int) ([]roomdomain.Message, error)
	getPreviewFunc          func(ctx context.Context, roomID string) (*room.PreviewResponse, error)
}

func (m *mockRoomPort) CreateRoom(ctx context.Context, userID, name, language string) (*roomdomain.Room, error) {
	if m.createRoomFunc != nil {
		return m.createRoomFunc(ctx, userID, name, language)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) JoinRoom(ctx context.Context, userID, roomID string) (*roomdomain.Room, error) {
	if m.joinRoomFunc != nil {
		return m.joinRoomFunc(ctx, userID, roomID)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) SendMessage(ctx context.Context, userID, roomID, content string) (*room.MessageResponse, error) {
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, userID, roomID, content)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) UpdateCode(ctx context.Context, userID, roomID, code string, baseRevision uint64) (*roomdomain.Room, error) {
	if m.updateCodeFunc != nil {
		return m.updateCodeFunc(ctx, userID, roomID, code, baseRevision)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) UpgradeSubscription(ctx context.Context, userID, roomID string) (*roomdomain.Room, error) {
	if m.upgradeSubscriptionFunc != nil {
		return m.upgradeSubscriptionFunc(ctx, userID, roomID)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) GetRoom(ctx context.Context, roomID string) (*roomdomain.Room, error) {
	if m.getRoomFunc != nil {
		return m.getRoomFunc(ctx, roomID)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) ListRooms(ctx context.Context) ([]roomdomain.Room, error) {
	if m.listRoomsFunc != nil {
		return m.listRoomsFunc(ctx)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) GetHistory(ctx context.Context, roomID string, limit int) ([]roomdomain.Message, error) {
	if m.getHistoryFunc != nil {
		return m.getHistoryFunc(ctx, roomID, limit)
	}
	return nil, errNotImplemented
}

func (m *mockRoomPort) GetPreview(ctx context.Context, roomID string) (*room.PreviewResponse, error) {
	if m.getPreviewFunc != nil {
		return m.getPreviewFunc(ctx, roomID)
	}
	return nil, errNotImplemented
}

// validAuth accepts the token "valid-token" as user u1.
func validAuth() *mockAuthPort {
	return &mockAuthPort{
		validateTokenFunc: func(_ context.Context, token string) (*userdomain.Claims, error) {
			if token != "valid-token" {
				return nil, errors.New("invalid token")
			}
			return &userdomain.Claims{UserID: "u1", Email: "u1@example.com", TokenID: "jti-1"}, nil
		},
	}
}

func sampleRoom() *roomdomain.Room {
	return &roomdomain.Room{
		ID:              "r-abc123",
		Name:            "Demo",
		OwnerID:         "u1",
		Code:            "console.log('hi')",
		Language:        roomdomain.LanguageJavaScript,
		Participants:    []userdomain.User{{ID: "u1", Name: "User 1"}},
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxParticipants: 5,
		Revision:        1,
	}
}

// fakeConn records frames written by the hub.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	received chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{received: make(chan struct{}, 64)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	c.received <- struct{}{}
	return nil
}

func (c *fakeConn) Close() error {
	return nil
}

// next waits for the next frame and decodes it.
func (c *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case <-c.received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var frame map[string]any
	if err := json.Unmarshal(c.frames[len(c.frames)-1], &frame); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	return frame
}

func startHub(t *testing.T) *broadcast.Hub {
	t.Helper()
	hub := broadcast.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}
