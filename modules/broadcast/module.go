package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/example/codehuddle/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Frame types pushed to WebSocket clients.
const (
	TypeRoomCreated          = "room_created"
	TypeParticipantJoined    = "participant_joined"
	TypeMessage              = "message"
	TypeCodeUpdated          = "code_updated"
	TypeSubscriptionUpgraded = "subscription_upgraded"
	TypeSessionEnded         = "session_ended"
	TypeTyping               = "typing"
)

// BroadcastModule consumes room and session events and pushes them to WebSocket clients.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start starts the hub loop.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - WebSocket hub running")
	return nil
}

// Stop closes all client connections and waits for the hub to exit.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.CodeUpdatedV1, m.handleCodeUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register CodeUpdated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.SubscriptionUpgradedV1, m.handleSubscriptionUpgraded, m,
	); err != nil {
		return fmt.Errorf("failed to register SubscriptionUpgraded consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.SessionChangedV1, m.handleSessionChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register SessionChanged consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: RoomCreated, ParticipantJoined, MessageSent, CodeUpdated, SubscriptionUpgraded, SessionChanged")
	return nil
}

func (m *BroadcastModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting room created: %s", event.RoomID)

	// Room list changes go to every connected client.
	m.hub.Broadcast("", TypeRoomCreated, event)
	return nil
}

func (m *BroadcastModule) handleParticipantJoined(_ context.Context, event events.ParticipantJoinedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting participant %s joined room %s", event.UserID, event.RoomID)
	m.hub.Broadcast(event.RoomID, TypeParticipantJoined, event)
	return nil
}

func (m *BroadcastModule) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting message from %s in room %s", event.SenderID, event.RoomID)
	m.hub.Broadcast(event.RoomID, TypeMessage, event)
	return nil
}

func (m *BroadcastModule) handleCodeUpdated(_ context.Context, event events.CodeUpdatedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting code revision %d in room %s", event.Revision, event.RoomID)
	m.hub.Broadcast(event.RoomID, TypeCodeUpdated, event)
	return nil
}

func (m *BroadcastModule) handleSubscriptionUpgraded(_ context.Context, event events.SubscriptionUpgradedEvent, _ *mono.Msg) error {
	log.Printf("[broadcast] Broadcasting subscription upgrade of room %s", event.RoomID)
	m.hub.Broadcast(event.RoomID, TypeSubscriptionUpgraded, event)
	return nil
}

func (m *BroadcastModule) handleSessionChanged(_ context.Context, event events.SessionChangedEvent, _ *mono.Msg) error {
	if event.Kind != events.SessionSignedOut {
		return nil
	}

	log.Printf("[broadcast] Closing connections of signed out user %s", event.UserID)
	m.hub.SendToUser(event.UserID, Envelope{Type: TypeSessionEnded, Data: event})
	m.hub.CloseUser(event.UserID)
	return nil
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
