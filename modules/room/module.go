package room

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/codehuddle/domain/room"
	"github.com/example/codehuddle/events"
	"github.com/example/codehuddle/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Snapshot store backends.
const (
	StoreKV     = "kv"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// BucketName is the kv-jetstream bucket holding the room snapshot.
const BucketName = "rooms"

// ModuleConfig configures the room module.
type ModuleConfig struct {
	// Store selects the snapshot backend: "kv", "sqlite" or "memory".
	Store string
	// DBPath is the SQLite file used by the "sqlite" backend.
	DBPath string
	// SnapshotKey is the key the room list is stored under.
	SnapshotKey string
	// Service configures the room service.
	Service Config
}

// DefaultModuleConfig returns the default module configuration.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		Store:       StoreKV,
		DBPath:      "codehuddle_rooms.db",
		SnapshotKey: DefaultSnapshotKey,
		Service:     DefaultConfig(),
	}
}

// Module is the room store module.
type Module struct {
	config   ModuleConfig
	kv       *kvjetstream.PluginModule
	db       *gorm.DB
	identity Identity
	service  *Service
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new room module.
func NewModule(config ModuleConfig, logger types.Logger) *Module {
	if config.Store == "" {
		config.Store = StoreKV
	}
	return &Module{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "room"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.identity = auth.NewAuthAdapter(container)
	}
}

// SetPlugin receives the KV plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "kv" {
		return
	}
	kv, ok := plugin.(*kvjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for kv",
			"alias", alias,
			"expected", "*kvjetstream.PluginModule")
		return
	}
	m.kv = kv
	m.logger.Info("Received KV plugin", "alias", alias)
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.ParticipantJoinedV1.ToBase(),
		events.MessageSentV1.ToBase(),
		events.CodeUpdatedV1.ToBase(),
		events.SubscriptionUpgradedV1.ToBase(),
	}
}

// Start opens the snapshot store and loads the room list.
func (m *Module) Start(ctx context.Context) error {
	if m.identity == nil {
		return fmt.Errorf("auth dependency not set")
	}

	store, err := m.openStore()
	if err != nil {
		return err
	}

	m.service = NewService(store, m.identity, m.config.Service)
	if err := m.service.Load(ctx); err != nil {
		return err
	}
	roomsGauge.Set(float64(m.service.Count()))

	m.logger.Info("Room module started",
		"store", m.config.Store,
		"rooms", m.service.Count(),
		"maxParticipants", m.config.Service.MaxParticipants)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				m.logger.Warn("Failed to close room database", "error", err)
			}
		}
	}
	m.logger.Info("Room module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "room service not initialized",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"store": m.config.Store,
			"rooms": m.service.Count(),
		},
	}
}

// Service returns the room service instance.
func (m *Module) Service() *Service {
	return m.service
}

// openStore builds the configured snapshot store.
func (m *Module) openStore() (Store, error) {
	switch m.config.Store {
	case StoreKV:
		if m.kv == nil {
			return nil, fmt.Errorf("required plugin 'kv' not registered")
		}
		bucket := m.kv.Bucket(BucketName)
		if bucket == nil {
			return nil, fmt.Errorf("bucket '%s' not found in KV plugin", BucketName)
		}
		return NewKVStore(bucket, m.config.SnapshotKey), nil
	case StoreSQLite:
		db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		m.db = db
		return NewSQLStore(db, m.config.SnapshotKey), nil
	case StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown room store %q", m.config.Store)
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinRoom, json.Unmarshal, json.Marshal, m.handleJoinRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSendMessage, json.Unmarshal, json.Marshal, m.handleSendMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSendMessage, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateCode, json.Unmarshal, json.Marshal, m.handleUpdateCode,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateCode, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpgradeSubscription, json.Unmarshal, json.Marshal, m.handleUpgradeSubscription,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpgradeSubscription, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.handleGetRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetHistory, json.Unmarshal, json.Marshal, m.handleGetHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetPreview, json.Unmarshal, json.Marshal, m.handleGetPreview,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetPreview, err)
	}

	m.logger.Info("Registered room services",
		"services", []string{
			ServiceCreateRoom, ServiceJoinRoom, ServiceSendMessage, ServiceUpdateCode,
			ServiceUpgradeSubscription, ServiceGetRoom, ServiceListRooms,
			ServiceGetHistory, ServiceGetPreview,
		})
	return nil
}

func (m *Module) handleCreateRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.CreateRoom(ctx, req.UserID, req.Name, req.Language)
	observe(ServiceCreateRoom, err)
	if err != nil {
		m.logger.Debug("Create room rejected", "userID", req.UserID, "error", err)
		return RoomResponse{}, err
	}
	roomsGauge.Set(float64(m.service.Count()))

	m.publish("RoomCreated", func() error {
		return events.RoomCreatedV1.Publish(m.eventBus, events.RoomCreatedEvent{
			RoomID:    room.ID,
			RoomName:  room.Name,
			Language:  room.Language,
			OwnerID:   room.OwnerID,
			Timestamp: room.CreatedAt,
		}, nil)
	})

	m.logger.Info("Room created", "roomID", room.ID, "ownerID", room.OwnerID)
	return RoomResponse{Room: room}, nil
}

func (m *Module) handleJoinRoom(ctx context.Context, req JoinRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, added, err := m.service.JoinRoom(ctx, req.UserID, req.RoomID)
	observe(ServiceJoinRoom, err)
	if err != nil {
		m.logger.Debug("Join room rejected", "userID", req.UserID, "roomID", req.RoomID, "error", err)
		return RoomResponse{}, err
	}

	if added {
		joiner, ok := room.Participant(strings.TrimSpace(req.UserID))
		if !ok {
			joiner.ID = req.UserID
		}
		m.publish("ParticipantJoined", func() error {
			return events.ParticipantJoinedV1.Publish(m.eventBus, events.ParticipantJoinedEvent{
				RoomID:           room.ID,
				UserID:           joiner.ID,
				Username:         joiner.Name,
				ParticipantCount: len(room.Participants),
				Revision:         room.Revision,
				Timestamp:        time.Now().UTC(),
			}, nil)
		})
		m.logger.Info("User joined room", "userID", req.UserID, "roomID", room.ID)
	}

	return RoomResponse{Room: room}, nil
}

func (m *Module) handleSendMessage(ctx context.Context, req SendMessageRequest, _ *mono.Msg) (MessageResponse, error) {
	msg, revision, err := m.service.SendMessage(ctx, req.UserID, req.RoomID, req.Content)
	observe(ServiceSendMessage, err)
	if err != nil {
		m.logger.Debug("Send message rejected", "userID", req.UserID, "roomID", req.RoomID, "error", err)
		return MessageResponse{}, err
	}
	roomID, _ := normalizeRoomID(req.RoomID)

	m.publish("MessageSent", func() error {
		return events.MessageSentV1.Publish(m.eventBus, events.MessageSentEvent{
			MessageID:  msg.ID,
			RoomID:     roomID,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Content:    msg.Content,
			Revision:   revision,
			Timestamp:  msg.Timestamp,
		}, nil)
	})

	m.logger.Debug("Message sent", "userID", req.UserID, "roomID", roomID)
	return MessageResponse{Message: msg, Revision: revision}, nil
}

func (m *Module) handleUpdateCode(ctx context.Context, req UpdateCodeRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.UpdateCode(ctx, req.UserID, req.RoomID, req.Code, req.BaseRevision)
	observe(ServiceUpdateCode, err)
	if err != nil {
		m.logger.Debug("Code update rejected", "userID", req.UserID, "roomID", req.RoomID, "error", err)
		return RoomResponse{}, err
	}

	m.publish("CodeUpdated", func() error {
		return events.CodeUpdatedV1.Publish(m.eventBus, events.CodeUpdatedEvent{
			RoomID:    room.ID,
			UserID:    req.UserID,
			Code:      room.Code,
			Revision:  room.Revision,
			Timestamp: time.Now().UTC(),
		}, nil)
	})

	return RoomResponse{Room: room}, nil
}

func (m *Module) handleUpgradeSubscription(ctx context.Context, req UpgradeSubscriptionRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.UpgradeSubscription(ctx, req.UserID, req.RoomID)
	observe(ServiceUpgradeSubscription, err)
	if err != nil {
		m.logger.Debug("Upgrade rejected", "userID", req.UserID, "roomID", req.RoomID, "error", err)
		return RoomResponse{}, err
	}

	m.publish("SubscriptionUpgraded", func() error {
		return events.SubscriptionUpgradedV1.Publish(m.eventBus, events.SubscriptionUpgradedEvent{
			RoomID:    room.ID,
			UserID:    req.UserID,
			Revision:  room.Revision,
			Timestamp: time.Now().UTC(),
		}, nil)
	})

	m.logger.Info("Room subscription upgraded", "roomID", room.ID, "userID", req.UserID)
	return RoomResponse{Room: room}, nil
}

func (m *Module) handleGetRoom(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.GetRoom(ctx, req.RoomID)
	observe(ServiceGetRoom, err)
	if err != nil {
		return RoomResponse{}, err
	}
	return RoomResponse{Room: room}, nil
}

func (m *Module) handleListRooms(ctx context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms := m.service.ListRooms(ctx)
	observe(ServiceListRooms, nil)
	summaries := make([]domain.Room, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Summary())
	}
	return ListRoomsResponse{Rooms: summaries}, nil
}

func (m *Module) handleGetHistory(ctx context.Context, req GetHistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	messages, err := m.service.History(ctx, req.RoomID, req.Limit)
	observe(ServiceGetHistory, err)
	if err != nil {
		return HistoryResponse{}, err
	}
	roomID, _ := normalizeRoomID(req.RoomID)
	return HistoryResponse{RoomID: roomID, Messages: messages}, nil
}

func (m *Module) handleGetPreview(ctx context.Context, req GetPreviewRequest, _ *mono.Msg) (PreviewResponse, error) {
	document, room, err := m.service.Preview(ctx, req.RoomID)
	observe(ServiceGetPreview, err)
	if err != nil {
		return PreviewResponse{}, err
	}
	return PreviewResponse{
		RoomID:   room.ID,
		Language: room.Language,
		Document: document,
	}, nil
}

// publish emits an event when an event bus is attached. Publish failures are
// logged; the mutation that triggered them is already persisted.
func (m *Module) publish(name string, fn func() error) {
	if m.eventBus == nil {
		return
	}
	if err := fn(); err != nil {
		m.logger.Warn("Failed to publish event", "event", name, "error", err)
	}
}
