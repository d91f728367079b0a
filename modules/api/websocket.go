package api

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	domain "github.com/example/codehuddle/domain/user"
	"github.com/example/codehuddle/modules/broadcast"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const wsRequestTimeout = 10 * time.Second

// upgradeWebSocket authenticates the ?token= query parameter before the upgrade.
func (h *Handlers) upgradeWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Token query parameter is required",
		})
	}

	claims, err := h.authAdapter.ValidateToken(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	}

	c.Locals(UserContextKey, claims)
	return c.Next()
}

// handleWebSocket handles WebSocket connections at /ws.
func (h *Handlers) handleWebSocket(c *websocket.Conn) {
	claims, ok := c.Locals(UserContextKey).(*domain.Claims)
	if !ok || claims == nil {
		_ = c.Close()
		return
	}

	client := &broadcast.Client{
		ID:       uuid.New().String(),
		UserID:   claims.UserID,
		Username: h.displayName(claims),
		Conn:     c,
	}

	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		log.Printf("[api] WebSocket client disconnected: %s (%s)", client.ID, client.Username)
	}()

	log.Printf("[api] WebSocket client connected: %s (%s)", client.ID, client.Username)

	if err := h.hub.Send(client, broadcast.Envelope{
		Type: WSTypeConnected,
		Data: map[string]string{"client_id": client.ID, "user_id": client.UserID, "username": client.Username},
	}); err != nil {
		log.Printf("[api] Failed to send welcome: %v", err)
		return
	}

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", client.ID)
			} else {
				log.Printf("[api] Read error from %s: %v", client.ID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(msgBytes, &msg); err != nil {
			h.sendWSError(client, "", "Invalid message format")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
		h.dispatch(ctx, client, msg)
		cancel()
	}
}

func (h *Handlers) displayName(claims *domain.Claims) string {
	ctx, cancel := context.WithTimeout(context.Background(), wsRequestTimeout)
	defer cancel()

	if user, err := h.authAdapter.GetUser(ctx, claims.UserID); err == nil && user.Name != "" {
		return user.Name
	}
	return claims.Email
}

// dispatch handles one client message. Replies go to the sending client only;
// room events reach everyone through the broadcast module.
func (h *Handlers) dispatch(ctx context.Context, client *broadcast.Client, msg WSMessage) {
	switch msg.Type {
	case WSTypeJoin:
		h.wsJoin(ctx, client, msg)
	case WSTypeLeave:
		h.wsLeave(client)
	case WSTypeMessage:
		h.wsMessage(ctx, client, msg)
	case WSTypeCode:
		h.wsCode(ctx, client, msg)
	case WSTypeHistory:
		h.wsHistory(ctx, client, msg)
	case WSTypeTyping:
		h.wsTyping(client, msg)
	default:
		h.sendWSError(client, msg.RoomID, "Unknown message type: "+msg.Type)
	}
}

func (h *Handlers) wsJoin(ctx context.Context, client *broadcast.Client, msg WSMessage) {
	if strings.TrimSpace(msg.RoomID) == "" {
		h.sendWSError(client, "", "Room ID is required")
		return
	}

	joined, err := h.roomAdapter.JoinRoom(ctx, client.UserID, msg.RoomID)
	if err != nil {
		h.sendWSError(client, msg.RoomID, classifyRoomError(err).Message)
		return
	}

	h.hub.JoinRoom(client.ID, joined.ID)
	h.reply(client, broadcast.Envelope{Type: WSTypeJoined, RoomID: joined.ID, Data: joined})
}

func (h *Handlers) wsLeave(client *broadcast.Client) {
	roomID := client.RoomID()
	if roomID == "" {
		h.sendWSError(client, "", "Not in a room")
		return
	}

	h.hub.LeaveRoom(client.ID)
	h.reply(client, broadcast.Envelope{Type: WSTypeLeft, RoomID: roomID})
}

func (h *Handlers) wsMessage(ctx context.Context, client *broadcast.Client, msg WSMessage) {
	roomID := h.targetRoom(client, msg)
	if roomID == "" {
		h.sendWSError(client, "", "Join a room first")
		return
	}

	sent, err := h.roomAdapter.SendMessage(ctx, client.UserID, roomID, msg.Content)
	if err != nil {
		h.sendWSError(client, roomID, classifyRoomError(err).Message)
		return
	}
	h.reply(client, broadcast.Envelope{Type: WSTypeSent, RoomID: roomID, Data: MessageResponse{
		Message:  *sent.Message,
		Revision: sent.Revision,
	}})
}

func (h *Handlers) wsCode(ctx context.Context, client *broadcast.Client, msg WSMessage) {
	roomID := h.targetRoom(client, msg)
	if roomID == "" {
		h.sendWSError(client, "", "Join a room first")
		return
	}

	updated, err := h.roomAdapter.UpdateCode(ctx, client.UserID, roomID, msg.Code, msg.BaseRevision)
	if err != nil {
		h.sendWSError(client, roomID, classifyRoomError(err).Message)
		return
	}
	h.reply(client, broadcast.Envelope{Type: WSTypeCodeSaved, RoomID: roomID, Data: map[string]uint64{
		"revision": updated.Revision,
	}})
}

func (h *Handlers) wsHistory(ctx context.Context, client *broadcast.Client, msg WSMessage) {
	roomID := h.targetRoom(client, msg)
	if roomID == "" {
		h.sendWSError(client, "", "Room ID is required")
		return
	}

	limit := msg.Limit
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	messages, err := h.roomAdapter.GetHistory(ctx, roomID, limit)
	if err != nil {
		h.sendWSError(client, roomID, classifyRoomError(err).Message)
		return
	}
	h.reply(client, broadcast.Envelope{Type: WSTypeHistory, RoomID: roomID, Data: HistoryResponse{
		RoomID:   roomID,
		Messages: messages,
	}})
}

// wsTyping relays a typing indicator to the client's joined room. Nothing is stored.
func (h *Handlers) wsTyping(client *broadcast.Client, msg WSMessage) {
	roomID := client.RoomID()
	if roomID == "" {
		h.sendWSError(client, "", "Join a room first")
		return
	}

	h.hub.Broadcast(roomID, broadcast.TypeTyping, TypingFrame{
		UserID:   client.UserID,
		Username: client.Username,
		Typing:   msg.Typing,
	})
}

// targetRoom prefers an explicit room id and falls back to the joined room.
func (h *Handlers) targetRoom(client *broadcast.Client, msg WSMessage) string {
	if roomID := strings.TrimSpace(msg.RoomID); roomID != "" {
		return roomID
	}
	return client.RoomID()
}

func (h *Handlers) reply(client *broadcast.Client, env broadcast.Envelope) {
	if err := h.hub.Send(client, env); err != nil {
		log.Printf("[api] Failed to reply to client %s: %v", client.ID, err)
	}
}

func (h *Handlers) sendWSError(client *broadcast.Client, roomID, message string) {
	h.reply(client, broadcast.Envelope{Type: WSTypeError, RoomID: roomID, Error: message})
}
