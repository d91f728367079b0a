package api

import (
	"errors"
	"log"

	"github.com/example/codehuddle/middleware/ratelimit"
	"github.com/example/codehuddle/modules/auth"
	"github.com/example/codehuddle/modules/room"
	"github.com/gofiber/fiber/v2"
)

// apiError is a client-facing error with its HTTP status.
type apiError struct {
	Status  int
	Code    string
	Message string
}

var errInternal = apiError{
	Status:  fiber.StatusInternalServerError,
	Code:    "internal_error",
	Message: "An internal error occurred",
}

// classifyRoomError maps room errors to client-facing errors.
// Internal errors are logged and never echoed.
func classifyRoomError(err error) apiError {
	var limitErr *room.LimitError

	switch {
	case ratelimit.IsRateLimited(err):
		return apiError{fiber.StatusTooManyRequests, "rate_limited", "Too many requests, please slow down"}
	case errors.Is(err, room.ErrRoomNotFound):
		return apiError{fiber.StatusNotFound, "not_found", "Room not found"}
	case errors.As(err, &limitErr), errors.Is(err, room.ErrRoomFull):
		return apiError{fiber.StatusForbidden, "limit_reached", limitMessage(limitErr)}
	case errors.Is(err, room.ErrNotParticipant):
		return apiError{fiber.StatusForbidden, "forbidden", "Join the room first"}
	case errors.Is(err, room.ErrNotOwner):
		return apiError{fiber.StatusForbidden, "forbidden", "Only the room owner can upgrade the subscription"}
	case errors.Is(err, room.ErrRevisionConflict), errors.Is(err, room.ErrSnapshotConflict):
		return apiError{fiber.StatusConflict, "conflict", "The room was changed by someone else, reload and retry"}
	case errors.Is(err, room.ErrPreviewLocked):
		return apiError{fiber.StatusPaymentRequired, "subscription_required", "Preview requires a subscription"}
	case errors.Is(err, room.ErrUnauthenticated):
		return apiError{fiber.StatusUnauthorized, "unauthorized", "Authentication required"}
	case errors.Is(err, room.ErrSnapshotTooLarge):
		return apiError{fiber.StatusRequestEntityTooLarge, "payload_too_large", "Room storage is full, trim the code or start a new room"}
	case room.IsValidationError(err):
		return apiError{fiber.StatusBadRequest, "validation_error", validationMessage(err)}
	default:
		log.Printf("[api] Internal room error: %v", err)
		return errInternal
	}
}

// classifyAuthError maps auth errors to client-facing errors.
func classifyAuthError(err error) apiError {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apiError{fiber.StatusUnauthorized, "unauthorized", "Invalid email or password"}
	case errors.Is(err, auth.ErrUserExists):
		return apiError{fiber.StatusConflict, "conflict", "User with this email already exists"}
	case errors.Is(err, auth.ErrInvalidEmail):
		return apiError{fiber.StatusBadRequest, "bad_request", "Invalid email format"}
	case errors.Is(err, auth.ErrWeakPassword):
		return apiError{fiber.StatusBadRequest, "bad_request", "Password must be at least 8 characters"}
	case errors.Is(err, auth.ErrPasswordTooLong):
		return apiError{fiber.StatusBadRequest, "bad_request", "Password must be at most 72 characters"}
	case errors.Is(err, auth.ErrNameTooLong):
		return apiError{fiber.StatusBadRequest, "bad_request", "Name must be at most 100 characters"}
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrRevokedToken),
		errors.Is(err, auth.ErrUserNotFound):
		return apiError{fiber.StatusUnauthorized, "unauthorized", "Invalid or expired token"}
	default:
		log.Printf("[api] Internal auth error: %v", err)
		return errInternal
	}
}

func limitMessage(limitErr *room.LimitError) string {
	if limitErr != nil {
		return limitErr.Error()
	}
	return room.ErrRoomFull.Error()
}

// validationMessage returns the validation reason without any request-reply prefix.
func validationMessage(err error) string {
	if reason := room.ValidationReason(err); reason != nil {
		return reason.Error()
	}
	return err.Error()
}

func respondError(c *fiber.Ctx, e apiError) error {
	return c.Status(e.Status).JSON(ErrorResponse{
		Error:   e.Code,
		Message: e.Message,
	})
}

func respondRoomError(c *fiber.Ctx, err error) error {
	return respondError(c, classifyRoomError(err))
}

func respondAuthError(c *fiber.Ctx, err error) error {
	return respondError(c, classifyAuthError(err))
}
