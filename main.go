package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/codehuddle/middleware/ratelimit"
	"github.com/example/codehuddle/modules/api"
	"github.com/example/codehuddle/modules/auth"
	"github.com/example/codehuddle/modules/broadcast"
	"github.com/example/codehuddle/modules/room"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== CodeHuddle - Collaborative Coding Rooms ===")

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(getEnv("JETSTREAM_DIR", "/tmp/codehuddle-jetstream")),
		mono.WithNATSMaxPayload(room.MaxPayloadBytes),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	roomConfig := loadRoomConfig()

	if roomConfig.Store == room.StoreKV {
		kvStore, err := kvjetstream.New(kvjetstream.Config{
			Buckets: []kvjetstream.BucketConfig{
				{
					Name:        room.BucketName,
					Description: "Room list snapshot",
					Storage:     kvjetstream.FileStorage,
				},
			},
		})
		if err != nil {
			log.Fatalf("Failed to create KV plugin: %v", err)
		}
		if err := app.RegisterPlugin(kvStore, "kv"); err != nil {
			log.Fatalf("Failed to register KV plugin: %v", err)
		}
	}

	// Middleware must be registered before regular modules.
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rateLimiter, err := ratelimit.New(
			ratelimit.WithRedisAddr(redisAddr),
			ratelimit.WithRedisPassword(os.Getenv("REDIS_PASSWORD")),
			ratelimit.WithServiceLimit(room.ServiceSendMessage, getEnvInt("RATE_LIMIT_MESSAGES", 30), time.Minute),
			ratelimit.WithServiceLimit(room.ServiceUpdateCode, getEnvInt("RATE_LIMIT_CODE", 120), time.Minute),
		)
		if err != nil {
			log.Fatalf("Failed to create rate limit middleware: %v", err)
		}
		app.Register(rateLimiter)
	} else {
		log.Println("REDIS_ADDR not set, rate limiting disabled")
	}

	authConfig := auth.DefaultModuleConfig()
	authConfig.DBPath = getEnv("AUTH_DB_PATH", authConfig.DBPath)

	broadcastModule := broadcast.NewModule()
	apiModule := api.NewModule()
	apiModule.SetHub(broadcastModule.GetHub())

	// Order: independent modules first, then modules with dependencies
	app.Register(auth.NewModule(authConfig, logger))
	app.Register(room.NewModule(roomConfig, logger))
	app.Register(broadcastModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(roomConfig)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func loadRoomConfig() room.ModuleConfig {
	config := room.DefaultModuleConfig()
	config.Store = getEnv("ROOM_STORE", config.Store)
	config.DBPath = getEnv("ROOM_DB_PATH", config.DBPath)
	config.Service.MaxParticipants = getEnvInt("ROOM_MAX_PARTICIPANTS", config.Service.MaxParticipants)
	config.Service.MaxHistory = getEnvInt("ROOM_MAX_HISTORY", config.Service.MaxHistory)
	config.Service.SeedDemoRoom = getEnvBool("ROOM_SEED_DEMO", config.Service.SeedDemoRoom)
	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func printStartupInfo(roomConfig room.ModuleConfig) {
	port := getEnv("PORT", "3000")

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber (REST + WebSocket)")
	log.Printf("  - Room store: %s", roomConfig.Store)
	log.Printf("  - Participant cap: %d", roomConfig.Service.MaxParticipants)
	log.Println("  - Identity: SQLite + JWT")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  POST   /api/v1/auth/sign-up          - Create an account")
	log.Println("  POST   /api/v1/auth/sign-in          - Sign in")
	log.Println("  POST   /api/v1/auth/refresh          - Refresh a session")
	log.Println("  POST   /api/v1/auth/sign-out         - Sign out")
	log.Println("  GET    /api/v1/auth/session          - Current user")
	log.Println("  GET    /api/v1/rooms                 - List rooms")
	log.Println("  POST   /api/v1/rooms                 - Create a room")
	log.Println("  GET    /api/v1/rooms/:id             - Get a room")
	log.Println("  POST   /api/v1/rooms/:id/join        - Join a room")
	log.Println("  GET    /api/v1/rooms/:id/messages    - Message history")
	log.Println("  POST   /api/v1/rooms/:id/messages    - Send a message")
	log.Println("  PUT    /api/v1/rooms/:id/code        - Update shared code")
	log.Println("  POST   /api/v1/rooms/:id/upgrade     - Lift the participant cap")
	log.Println("  GET    /api/v1/rooms/:id/preview     - Live preview document")
	log.Println("  GET    /api/v1/languages             - Supported languages")
	log.Println("  GET    /health                       - Health check")
	log.Println("  GET    /metrics                      - Prometheus metrics")
	log.Println("")
	log.Printf("WebSocket: ws://localhost:%s/ws?token=<access-token>", port)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
