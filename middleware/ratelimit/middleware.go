package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is matched by RateLimitError and by rate limit failures
// received over request-reply.
var ErrRateLimited = errors.New("rate limit exceeded")

// Middleware implements rate limiting as a mono.MiddlewareModule.
// It wraps request-reply handlers of limited services and enforces
// per-client limits using Redis. Redis failures let requests through.
type Middleware struct {
	name    string
	config  Config
	client  *redis.Client
	limiter *Limiter
	logger  *slog.Logger
}

// Compile-time interface checks
var (
	_ mono.Module           = (*Middleware)(nil)
	_ mono.MiddlewareModule = (*Middleware)(nil)
)

// RateLimitError is returned when rate limit is exceeded.
type RateLimitError struct {
	Message   string    `json:"error"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit"`
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsRateLimited reports whether err is a local or remote rate limit rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) || strings.Contains(err.Error(), ErrRateLimited.Error())
}

// New creates a new rate limiting middleware.
func New(opts ...Option) (*Middleware, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	for name, limit := range config.ServiceLimits {
		if limit.Limit < 0 || limit.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limit for service %s: %d per %v", name, limit.Limit, limit.Window)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Middleware{
		name:   "rate-limit",
		config: config,
		logger: logger,
	}, nil
}

// Name returns the middleware name.
func (m *Middleware) Name() string {
	return m.name
}

// Start connects to Redis. An unreachable server is logged and requests
// are let through until it becomes reachable.
func (m *Middleware) Start(ctx context.Context) error {
	m.client = redis.NewClient(&redis.Options{
		Addr:         m.config.RedisAddr,
		Password:     m.config.RedisPassword,
		DB:           m.config.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := m.client.Ping(ctx).Err(); err != nil {
		m.logger.Warn("Redis unreachable, rate limiting fails open",
			"redis", m.config.RedisAddr,
			"error", err)
	}

	m.limiter = NewLimiter(m.client, m.config.KeyPrefix)
	m.logger.Info("Rate limiting middleware started",
		"redis", m.config.RedisAddr,
		"services", len(m.config.ServiceLimits))

	return nil
}

// Stop closes the Redis connection.
func (m *Middleware) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Error("Failed to close Redis connection", "error", err)
			return err
		}
	}
	m.logger.Info("Rate limiting middleware stopped")
	return nil
}

// OnModuleLifecycle passes through module lifecycle events unchanged.
func (m *Middleware) OnModuleLifecycle(
	_ context.Context,
	event types.ModuleLifecycleEvent,
) types.ModuleLifecycleEvent {
	return event
}

// OnServiceRegistration wraps request-reply handlers of limited services.
func (m *Middleware) OnServiceRegistration(
	_ context.Context,
	reg types.ServiceRegistration,
) types.ServiceRegistration {
	if reg.Type != types.ServiceTypeRequestReply || reg.RequestHandler == nil {
		return reg
	}

	serviceName := reg.Name
	limit, window := m.getLimitForService(serviceName)
	if limit <= 0 {
		return reg
	}

	m.logger.Debug("Wrapping service with rate limiting",
		"service", serviceName,
		"limit", limit,
		"window", window)

	reg.RequestHandler = m.wrap(serviceName, limit, window, reg.RequestHandler)
	return reg
}

func (m *Middleware) wrap(
	serviceName string,
	limit int,
	window time.Duration,
	original func(ctx context.Context, req *types.Msg) ([]byte, error),
) func(ctx context.Context, req *types.Msg) ([]byte, error) {
	return func(ctx context.Context, req *types.Msg) ([]byte, error) {
		if m.limiter == nil {
			return original(ctx, req)
		}

		clientID := m.extractClientID(req)
		key := fmt.Sprintf("%s:%s", serviceName, clientID)

		result, err := m.limiter.Allow(ctx, key, limit, window)
		if err != nil {
			m.logger.Error("Rate limit check failed",
				"service", serviceName,
				"client_id", clientID,
				"error", err)
			return original(ctx, req)
		}

		if !result.Allowed {
			m.logger.Warn("Rate limit exceeded",
				"service", serviceName,
				"client_id", clientID,
				"limit", result.Limit,
				"reset_at", result.ResetAt)

			errResp := &RateLimitError{
				Message:   fmt.Sprintf("%s for service %s", ErrRateLimited, serviceName),
				Remaining: result.Remaining,
				ResetAt:   result.ResetAt,
				Limit:     result.Limit,
			}

			respBytes, err := json.Marshal(errResp)
			if err != nil {
				m.logger.Error("Failed to marshal rate limit error", "error", err)
				return nil, errResp
			}
			return respBytes, errResp
		}

		return original(ctx, req)
	}
}

// OnConfigurationChange passes through configuration changes unchanged.
func (m *Middleware) OnConfigurationChange(
	_ context.Context,
	event types.ConfigurationEvent,
) types.ConfigurationEvent {
	return event
}

// OnOutgoingMessage passes through outgoing messages unchanged.
func (m *Middleware) OnOutgoingMessage(
	octx types.OutgoingMessageContext,
) types.OutgoingMessageContext {
	return octx
}

// OnEventConsumerRegistration passes through event consumer registrations unchanged.
func (m *Middleware) OnEventConsumerRegistration(
	_ context.Context,
	entry types.EventConsumerEntry,
) types.EventConsumerEntry {
	return entry
}

// OnEventStreamConsumerRegistration passes through event stream consumer registrations unchanged.
func (m *Middleware) OnEventStreamConsumerRegistration(
	_ context.Context,
	entry types.EventStreamConsumerEntry,
) types.EventStreamConsumerEntry {
	return entry
}

// getLimitForService returns the rate limit configuration for a service.
func (m *Middleware) getLimitForService(serviceName string) (int, time.Duration) {
	if serviceLimit, ok := m.config.ServiceLimits[serviceName]; ok {
		return serviceLimit.Limit, serviceLimit.Window
	}
	return m.config.DefaultLimit, m.config.DefaultWindow
}

// maxClientIDLength limits client ID length to prevent abuse.
const maxClientIDLength = 128

// extractClientID reads the client ID from the configured header, then from
// the configured payload field. The value is truncated to maxClientIDLength.
func (m *Middleware) extractClientID(req *types.Msg) string {
	if req == nil {
		return m.config.FallbackClientID
	}

	clientID := ""
	if values, ok := req.Header[m.config.ClientIDHeader]; ok && len(values) > 0 {
		clientID = values[0]
	}
	if clientID == "" && m.config.ClientIDField != "" && len(req.Data) > 0 {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(req.Data, &payload); err == nil {
			var field string
			if raw, ok := payload[m.config.ClientIDField]; ok && json.Unmarshal(raw, &field) == nil {
				clientID = field
			}
		}
	}

	if clientID == "" {
		return m.config.FallbackClientID
	}
	if len(clientID) > maxClientIDLength {
		clientID = clientID[:maxClientIDLength]
	}
	return clientID
}
