package api

import (
	roomdomain "github.com/example/codehuddle/domain/room"
	userdomain "github.com/example/codehuddle/domain/user"
)

// SignUpRequest is the API request to create an account.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// SignInRequest is the API request to start a session.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the API request to rotate a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignOutRequest carries the refresh token to revoke along with the bearer token.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SessionResponse is the API response for the current session.
type SessionResponse struct {
	User userdomain.User `json:"user"`
}

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// SendMessageRequest is the API request to post a chat message.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// UpdateCodeRequest is the API request to replace a room's code.
type UpdateCodeRequest struct {
	Code         string `json:"code"`
	BaseRevision uint64 `json:"base_revision,omitempty"`
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	Room             roomdomain.Room `json:"room"`
	ConnectedClients int             `json:"connected_clients"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []roomdomain.Room `json:"rooms"`
}

// MessageResponse is the API response for a posted message.
type MessageResponse struct {
	Message  roomdomain.Message `json:"message"`
	Revision uint64             `json:"revision"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	RoomID   string               `json:"room_id"`
	Messages []roomdomain.Message `json:"messages"`
}

// LanguagesResponse lists the languages a room can be created with.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// WebSocket client message types.
const (
	WSTypeJoin    = "join"
	WSTypeLeave   = "leave"
	WSTypeMessage = "message"
	WSTypeCode    = "code"
	WSTypeHistory = "history"
	WSTypeTyping  = "typing"
)

// WebSocket reply types.
const (
	WSTypeConnected = "connected"
	WSTypeJoined    = "joined"
	WSTypeLeft      = "left"
	WSTypeSent      = "sent"
	WSTypeCodeSaved = "code_saved"
	WSTypeError     = "error"
)

// WSMessage is a message received from a WebSocket client.
type WSMessage struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id,omitempty"`
	Content      string `json:"content,omitempty"`
	Code         string `json:"code,omitempty"`
	BaseRevision uint64 `json:"base_revision,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Typing       bool   `json:"typing,omitempty"`
}

// TypingFrame tells a room that a participant started or stopped typing.
// Clients clear the indicator on their own when no update arrives.
type TypingFrame struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}
