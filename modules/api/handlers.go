package api

import (
	"strconv"
	"strings"

	roomdomain "github.com/example/codehuddle/domain/room"
	"github.com/example/codehuddle/modules/auth"
	"github.com/example/codehuddle/modules/broadcast"
	"github.com/example/codehuddle/modules/room"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// previewPolicy runs previews in an opaque origin so user scripts cannot reach the API.
const previewPolicy = "sandbox allow-scripts; default-src 'none'; img-src data: https:; " +
	"style-src 'unsafe-inline'; script-src 'unsafe-inline'"

// Handlers contains HTTP and WebSocket handlers for the API.
type Handlers struct {
	authAdapter auth.AuthPort
	roomAdapter room.RoomPort
	hub         *broadcast.Hub
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authAdapter auth.AuthPort, roomAdapter room.RoomPort, hub *broadcast.Hub) *Handlers {
	return &Handlers{
		authAdapter: authAdapter,
		roomAdapter: roomAdapter,
		hub:         hub,
	}
}

// Mount registers all routes on app.
func (h *Handlers) Mount(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket endpoint, authenticated with ?token=<access token>
	app.Use("/ws", h.upgradeWebSocket)
	app.Get("/ws", websocket.New(h.handleWebSocket))

	v1 := app.Group("/api/v1")
	v1.Get("/languages", h.Languages)

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/sign-up", h.SignUp)
	authRoutes.Post("/sign-in", h.SignIn)
	authRoutes.Post("/refresh", h.Refresh)

	requireAuth := AuthMiddleware(h.authAdapter)
	authRoutes.Post("/sign-out", requireAuth, h.SignOut)
	authRoutes.Get("/session", requireAuth, h.Session)

	rooms := v1.Group("/rooms", requireAuth)
	rooms.Get("/", h.ListRooms)
	rooms.Post("/", h.CreateRoom)
	rooms.Get("/:id", h.GetRoom)
	rooms.Post("/:id/join", h.JoinRoom)
	rooms.Get("/:id/messages", h.GetHistory)
	rooms.Post("/:id/messages", h.SendMessage)
	rooms.Put("/:id/code", h.UpdateCode)
	rooms.Post("/:id/upgrade", h.UpgradeSubscription)
	rooms.Get("/:id/preview", h.Preview)
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": h.hub.ClientCount(),
		},
	})
}

// Languages handles GET /api/v1/languages.
func (h *Handlers) Languages(c *fiber.Ctx) error {
	return c.JSON(LanguagesResponse{Languages: roomdomain.Languages})
}

// SignUp handles POST /api/v1/auth/sign-up.
func (h *Handlers) SignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	session, err := h.authAdapter.SignUp(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return respondAuthError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// SignIn handles POST /api/v1/auth/sign-in.
func (h *Handlers) SignIn(c *fiber.Ctx) error {
	var req SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}

	session, err := h.authAdapter.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondAuthError(c, err)
	}
	return c.JSON(session)
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "Refresh token is required")
	}

	session, err := h.authAdapter.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondAuthError(c, err)
	}
	return c.JSON(session)
}

// SignOut handles POST /api/v1/auth/sign-out.
// The body is optional; when it carries a refresh token that token is revoked too.
func (h *Handlers) SignOut(c *fiber.Ctx) error {
	var req SignOutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	token, _ := c.Locals(TokenContextKey).(string)
	if err := h.authAdapter.SignOut(c.UserContext(), token, req.RefreshToken); err != nil {
		return respondAuthError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Session handles GET /api/v1/auth/session.
func (h *Handlers) Session(c *fiber.Ctx) error {
	token, _ := c.Locals(TokenContextKey).(string)
	user, err := h.authAdapter.GetSession(c.UserContext(), token)
	if err != nil {
		return respondAuthError(c, err)
	}
	return c.JSON(SessionResponse{User: *user})
}

// ListRooms handles GET /api/v1/rooms.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.roomAdapter.ListRooms(c.UserContext())
	if err != nil {
		return respondRoomError(c, err)
	}
	if rooms == nil {
		rooms = []roomdomain.Room{}
	}
	return c.JSON(RoomListResponse{Rooms: rooms})
}

// CreateRoom handles POST /api/v1/rooms.
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	created, err := h.roomAdapter.CreateRoom(c.UserContext(), claims.UserID, req.Name, req.Language)
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.roomResponse(created))
}

// GetRoom handles GET /api/v1/rooms/:id.
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	found, err := h.roomAdapter.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.JSON(h.roomResponse(found))
}

// JoinRoom handles POST /api/v1/rooms/:id/join.
func (h *Handlers) JoinRoom(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	joined, err := h.roomAdapter.JoinRoom(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.JSON(h.roomResponse(joined))
}

// GetHistory handles GET /api/v1/rooms/:id/messages.
func (h *Handlers) GetHistory(c *fiber.Ctx) error {
	roomID := c.Params("id")
	limit := parseLimit(c.Query("limit"))

	messages, err := h.roomAdapter.GetHistory(c.UserContext(), roomID, limit)
	if err != nil {
		return respondRoomError(c, err)
	}
	if messages == nil {
		messages = []roomdomain.Message{}
	}
	return c.JSON(HistoryResponse{RoomID: roomID, Messages: messages})
}

// SendMessage handles POST /api/v1/rooms/:id/messages.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	sent, err := h.roomAdapter.SendMessage(c.UserContext(), claims.UserID, c.Params("id"), req.Content)
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{
		Message:  *sent.Message,
		Revision: sent.Revision,
	})
}

// UpdateCode handles PUT /api/v1/rooms/:id/code.
func (h *Handlers) UpdateCode(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	updated, err := h.roomAdapter.UpdateCode(c.UserContext(), claims.UserID, c.Params("id"), req.Code, req.BaseRevision)
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.JSON(h.roomResponse(updated))
}

// UpgradeSubscription handles POST /api/v1/rooms/:id/upgrade.
func (h *Handlers) UpgradeSubscription(c *fiber.Ctx) error {
	claims, ok := claimsFrom(c)
	if !ok {
		return unauthorized(c)
	}

	upgraded, err := h.roomAdapter.UpgradeSubscription(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return respondRoomError(c, err)
	}
	return c.JSON(h.roomResponse(upgraded))
}

// Preview handles GET /api/v1/rooms/:id/preview and returns an HTML document.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	preview, err := h.roomAdapter.GetPreview(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondRoomError(c, err)
	}

	c.Set("Content-Security-Policy", previewPolicy)
	c.Set("X-Content-Type-Options", "nosniff")
	c.Type("html", "utf-8")
	return c.SendString(preview.Document)
}

func (h *Handlers) roomResponse(r *roomdomain.Room) RoomResponse {
	return RoomResponse{
		Room:             *r,
		ConnectedClients: h.hub.RoomClientCount(r.ID),
	}
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: "User not authenticated",
	})
}
