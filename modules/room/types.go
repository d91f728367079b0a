package room

import (
	"strings"
	"unicode/utf8"

	domain "github.com/example/codehuddle/domain/room"
)

// Validation constants
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 5000
	MaxCodeSize       = 512 * 1024
)

// Payload limits. The snapshot and every room reply travel as one NATS message,
// so the snapshot budget leaves room for the reply envelope.
const (
	// MaxPayloadBytes is the NATS payload limit the application runs with.
	MaxPayloadBytes = 8 * 1024 * 1024
	// DefaultMaxSnapshotBytes is the largest encoded room list a mutation may produce.
	DefaultMaxSnapshotBytes = MaxPayloadBytes - payloadHeadroom

	payloadHeadroom = 64 * 1024
)

// Request-reply service names registered by the room module.
const (
	ServiceCreateRoom          = "create-room"
	ServiceJoinRoom            = "join-room"
	ServiceSendMessage         = "send-message"
	ServiceUpdateCode          = "update-code"
	ServiceUpgradeSubscription = "upgrade-subscription"
	ServiceGetRoom             = "get-room"
	ServiceListRooms           = "list-rooms"
	ServiceGetHistory          = "get-history"
	ServiceGetPreview          = "get-preview"
)

// CreateRoomRequest is the request for creating a room.
type CreateRoomRequest struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// JoinRoomRequest is the request for joining a room.
type JoinRoomRequest struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

// SendMessageRequest is the request for sending a chat message.
type SendMessageRequest struct {
	UserID  string `json:"user_id"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// UpdateCodeRequest replaces a room's code. BaseRevision 0 skips the revision check.
type UpdateCodeRequest struct {
	UserID       string `json:"user_id"`
	RoomID       string `json:"room_id"`
	Code         string `json:"code"`
	BaseRevision uint64 `json:"base_revision,omitempty"`
}

// UpgradeSubscriptionRequest is the request for upgrading a room.
type UpgradeSubscriptionRequest struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

// GetRoomRequest is the request for a single room.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// ListRoomsRequest is the request for listing rooms.
type ListRoomsRequest struct{}

// GetHistoryRequest is the request for a room's most recent messages.
type GetHistoryRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
}

// GetPreviewRequest is the request for a room's preview document.
type GetPreviewRequest struct {
	RoomID string `json:"room_id"`
}

// RoomResponse carries a single room.
type RoomResponse struct {
	Room *domain.Room `json:"room"`
}

// ListRoomsResponse carries all rooms without their code buffers and chat histories.
type ListRoomsResponse struct {
	Rooms []domain.Room `json:"rooms"`
}

// MessageResponse carries a single message together with the room revision it produced.
type MessageResponse struct {
	Message  *domain.Message `json:"message"`
	Revision uint64          `json:"revision"`
}

// HistoryResponse carries message history.
type HistoryResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}

// PreviewResponse carries a rendered preview document.
type PreviewResponse struct {
	RoomID   string `json:"room_id"`
	Language string `json:"language"`
	Document string `json:"document"`
}

// ValidateRoomName validates a trimmed room name.
func ValidateRoomName(name string) error {
	if name == "" {
		return ErrRoomNameEmpty
	}
	if !utf8.ValidString(name) {
		return ErrRoomNameInvalid
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	return nil
}

// ValidateLanguage validates a room language tag.
func ValidateLanguage(language string) error {
	if !domain.IsSupportedLanguage(language) {
		return ErrUnsupportedLanguage
	}
	return nil
}

// ValidateMessage validates trimmed message content.
func ValidateMessage(content string) error {
	if content == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ValidateCode validates a full code buffer.
func ValidateCode(code string) error {
	if len(code) > MaxCodeSize {
		return ErrCodeTooLong
	}
	if !utf8.ValidString(code) {
		return ErrCodeInvalid
	}
	return nil
}

// normalizeRoomID trims the whitespace users tend to paste along with an id.
func normalizeRoomID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	return id, nil
}
