package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/example/codehuddle/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ModuleConfig configures the auth module.
type ModuleConfig struct {
	DBPath     string
	JWT        JWTConfig
	BcryptCost int
}

// DefaultModuleConfig returns the default configuration with JWT settings
// overridden from JWT_SECRET_KEY and JWT_ISSUER.
func DefaultModuleConfig() ModuleConfig {
	return ModuleConfig{
		DBPath:     "codehuddle_auth.db",
		JWT:        loadJWTConfig(),
		BcryptCost: DefaultBcryptCost,
	}
}

// AuthModule provides identity services.
type AuthModule struct {
	config   ModuleConfig
	db       *gorm.DB
	service  *Service
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*AuthModule)(nil)
	_ mono.ServiceProviderModule = (*AuthModule)(nil)
	_ mono.EventBusAwareModule   = (*AuthModule)(nil)
	_ mono.EventEmitterModule    = (*AuthModule)(nil)
	_ mono.HealthCheckableModule = (*AuthModule)(nil)
)

// NewModule creates a new AuthModule.
func NewModule(config ModuleConfig, logger types.Logger) *AuthModule {
	if config.DBPath == "" {
		config.DBPath = "codehuddle_auth.db"
	}
	return &AuthModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// SetEventBus receives the EventBus from the framework.
func (m *AuthModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *AuthModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.SessionChangedV1.ToBase(),
	}
}

// Start opens the account database.
func (m *AuthModule) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	repo := NewAccountRepository(db)
	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.service = NewService(repo, NewPasswordHasherWithCost(m.config.BcryptCost), NewJWTManager(m.config.JWT))

	purged, err := m.service.PurgeExpiredRevocations(ctx)
	if err != nil {
		m.logger.Warn("Failed to purge expired revocations", "error", err)
	}

	m.logger.Info("Auth module started", "database", m.config.DBPath, "purgedRevocations", purged)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				m.logger.Warn("Failed to close auth database", "error", err)
			}
		}
	}
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.config.DBPath,
		},
	}
}

// Service returns the auth service instance.
func (m *AuthModule) Service() *Service {
	return m.service
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignUp, json.Unmarshal, json.Marshal, m.handleSignUp,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignUp, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignIn, json.Unmarshal, json.Marshal, m.handleSignIn,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignIn, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSignOut, json.Unmarshal, json.Marshal, m.handleSignOut,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSignOut, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetSession, json.Unmarshal, json.Marshal, m.handleGetSession,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetSession, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRefreshSession, json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRefreshSession, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceValidateToken, json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceValidateToken, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	m.logger.Info("Registered auth services",
		"services", []string{
			ServiceSignUp, ServiceSignIn, ServiceSignOut, ServiceGetSession,
			ServiceRefreshSession, ServiceValidateToken, ServiceGetUser,
		})
	return nil
}

func (m *AuthModule) handleSignUp(ctx context.Context, req SignUpRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.SignUp(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		m.logger.Debug("Sign-up rejected", "error", err)
		return SessionResponse{}, err
	}
	m.logger.Info("Account created", "userID", session.User.ID)
	m.publishSessionChanged(events.SessionSignedIn, session.User.ID, session.User.Email)
	return SessionResponse{Session: *session}, nil
}

func (m *AuthModule) handleSignIn(ctx context.Context, req SignInRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		m.logger.Debug("Sign-in rejected", "error", err)
		return SessionResponse{}, err
	}
	m.publishSessionChanged(events.SessionSignedIn, session.User.ID, session.User.Email)
	return SessionResponse{Session: *session}, nil
}

func (m *AuthModule) handleSignOut(ctx context.Context, req SignOutRequest, _ *mono.Msg) (SignOutResponse, error) {
	claims, err := m.service.SignOut(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return SignOutResponse{}, err
	}
	m.publishSessionChanged(events.SessionSignedOut, claims.UserID, claims.Email)
	return SignOutResponse{UserID: claims.UserID}, nil
}

func (m *AuthModule) handleGetSession(ctx context.Context, req GetSessionRequest, _ *mono.Msg) (GetSessionResponse, error) {
	user, claims, err := m.service.GetSession(ctx, req.AccessToken)
	if err != nil {
		return GetSessionResponse{}, err
	}
	return GetSessionResponse{User: *user, Claims: *claims}, nil
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (SessionResponse, error) {
	session, err := m.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{Session: *session}, nil
}

// handleValidateToken reports invalid tokens in the response body rather than
// as a service error.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrExpiredToken) && !errors.Is(err, ErrRevokedToken) {
			m.logger.Error("Token validation failed", "error", err)
			return ValidateTokenResponse{}, err
		}
		return ValidateTokenResponse{
			Valid: false,
			Error: tokenErrorCode(err),
		}, nil
	}

	return ValidateTokenResponse{
		Valid:  true,
		Claims: *claims,
	}, nil
}

func (m *AuthModule) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	user, err := m.service.GetUser(ctx, req.UserID)
	if err != nil {
		return GetUserResponse{}, err
	}
	return GetUserResponse{User: *user}, nil
}

func (m *AuthModule) publishSessionChanged(kind, userID, email string) {
	if m.eventBus == nil {
		return
	}
	event := events.SessionChangedEvent{
		Kind:      kind,
		UserID:    userID,
		Email:     email,
		Timestamp: time.Now().UTC(),
	}
	if err := events.SessionChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish SessionChanged event", "kind", kind, "userID", userID, "error", err)
	}
}

// loadJWTConfig loads JWT configuration from environment variables.
func loadJWTConfig() JWTConfig {
	config := DefaultJWTConfig()

	if secret := os.Getenv("JWT_SECRET_KEY"); secret != "" {
		config.SecretKey = secret
	}

	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}

	return config
}
