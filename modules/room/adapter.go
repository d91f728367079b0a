package room

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/codehuddle/domain/room"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RoomPort defines the room operations available to other modules.
type RoomPort interface {
	CreateRoom(ctx context.Context, userID, name, language string) (*domain.Room, error)
	JoinRoom(ctx context.Context, userID, roomID string) (*domain.Room, error)
	SendMessage(ctx context.Context, userID, roomID, content string) (*MessageResponse, error)
	UpdateCode(ctx context.Context, userID, roomID, code string, baseRevision uint64) (*domain.Room, error)
	UpgradeSubscription(ctx context.Context, userID, roomID string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	GetPreview(ctx context.Context, roomID string) (*PreviewResponse, error)
}

// RoomAdapter implements RoomPort using the service container.
// Errors returned by the room module are restored to their sentinel values
// so callers can match them with errors.Is.
type RoomAdapter struct {
	container mono.ServiceContainer
}

var _ RoomPort = (*RoomAdapter)(nil)

// NewRoomAdapter creates a new RoomAdapter.
func NewRoomAdapter(container mono.ServiceContainer) *RoomAdapter {
	return &RoomAdapter{
		container: container,
	}
}

// CreateRoom creates a room owned by userID.
func (a *RoomAdapter) CreateRoom(ctx context.Context, userID, name, language string) (*domain.Room, error) {
	req := CreateRoomRequest{UserID: userID, Name: name, Language: language}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceCreateRoom, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// JoinRoom adds userID to the room's participants.
func (a *RoomAdapter) JoinRoom(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	req := JoinRoomRequest{UserID: userID, RoomID: roomID}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceJoinRoom, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// SendMessage appends a chat message to the room.
func (a *RoomAdapter) SendMessage(ctx context.Context, userID, roomID, content string) (*MessageResponse, error) {
	req := SendMessageRequest{UserID: userID, RoomID: roomID, Content: content}
	var resp MessageResponse
	if err := callService(ctx, a.container, ServiceSendMessage, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateCode replaces the room's code.
func (a *RoomAdapter) UpdateCode(ctx context.Context, userID, roomID, code string, baseRevision uint64) (*domain.Room, error) {
	req := UpdateCodeRequest{UserID: userID, RoomID: roomID, Code: code, BaseRevision: baseRevision}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceUpdateCode, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// UpgradeSubscription removes the room's participant cap.
func (a *RoomAdapter) UpgradeSubscription(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	req := UpgradeSubscriptionRequest{UserID: userID, RoomID: roomID}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceUpgradeSubscription, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// GetRoom retrieves a room by id.
func (a *RoomAdapter) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceGetRoom, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// ListRooms retrieves room summaries. Code and messages are left empty.
func (a *RoomAdapter) ListRooms(ctx context.Context) ([]domain.Room, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := callService(ctx, a.container, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Rooms == nil {
		return []domain.Room{}, nil
	}
	return resp.Rooms, nil
}

// GetHistory retrieves the room's most recent messages.
func (a *RoomAdapter) GetHistory(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := GetHistoryRequest{RoomID: roomID, Limit: limit}
	var resp HistoryResponse
	if err := callService(ctx, a.container, ServiceGetHistory, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		return []domain.Message{}, nil
	}
	return resp.Messages, nil
}

// GetPreview retrieves the room's rendered preview.
func (a *RoomAdapter) GetPreview(ctx context.Context, roomID string) (*PreviewResponse, error) {
	req := GetPreviewRequest{RoomID: roomID}
	var resp PreviewResponse
	if err := callService(ctx, a.container, ServiceGetPreview, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, errorFromRemote(err))
	}
	return nil
}
