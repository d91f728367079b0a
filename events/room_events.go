package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when a new room is created.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Language  string    `json:"language"`
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantJoinedEvent is emitted when a user is added to a room's participants.
type ParticipantJoinedEvent struct {
	RoomID           string    `json:"room_id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	ParticipantCount int       `json:"participant_count"`
	Revision         uint64    `json:"revision"`
	Timestamp        time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted when a chat message is appended to a room.
type MessageSentEvent struct {
	MessageID  string    `json:"message_id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Revision   uint64    `json:"revision"`
	Timestamp  time.Time `json:"timestamp"`
}

// CodeUpdatedEvent is emitted when a room's code buffer is replaced.
type CodeUpdatedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// SubscriptionUpgradedEvent is emitted when a room's participant cap is removed.
type SubscriptionUpgradedEvent struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the room domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"room",
		"RoomCreated",
		"v1",
	)

	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"room",
		"ParticipantJoined",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"room",
		"MessageSent",
		"v1",
	)

	CodeUpdatedV1 = helper.EventDefinition[CodeUpdatedEvent](
		"room",
		"CodeUpdated",
		"v1",
	)

	SubscriptionUpgradedV1 = helper.EventDefinition[SubscriptionUpgradedEvent](
		"room",
		"SubscriptionUpgraded",
		"v1",
	)
)
