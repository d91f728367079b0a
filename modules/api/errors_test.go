package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/example/codehuddle/middleware/ratelimit"
	"github.com/example/codehuddle/modules/auth"
	"github.com/example/codehuddle/modules/room"
)

func TestClassifyRoomError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", room.ErrRoomNotFound, http.StatusNotFound, "not_found"},
		{"limit", &room.LimitError{Max: 5}, http.StatusForbidden, "limit_reached"},
		{"limit sentinel only", fmt.Errorf("x: %w", room.ErrRoomFull), http.StatusForbidden, "limit_reached"},
		{"not participant", room.ErrNotParticipant, http.StatusForbidden, "forbidden"},
		{"not owner", room.ErrNotOwner, http.StatusForbidden, "forbidden"},
		{"revision conflict", room.ErrRevisionConflict, http.StatusConflict, "conflict"},
		{"snapshot conflict", room.ErrSnapshotConflict, http.StatusConflict, "conflict"},
		{"preview locked", room.ErrPreviewLocked, http.StatusPaymentRequired, "subscription_required"},
		{"unauthenticated", room.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{"snapshot too large", fmt.Errorf("update-code request failed: %w", room.ErrSnapshotTooLarge), http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"validation", room.ErrMessageTooLong, http.StatusBadRequest, "validation_error"},
		{"rate limited", &ratelimit.RateLimitError{Message: "rate limit exceeded for service update-code"}, http.StatusTooManyRequests, "rate_limited"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyRoomError(tt.err)
			if got.Status != tt.wantStatus || got.Code != tt.wantCode {
				t.Errorf("classifyRoomError() = (%d, %q), want (%d, %q)", got.Status, got.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestClassifyRoomError_Messages(t *testing.T) {
	limit := classifyRoomError(fmt.Errorf("join-room request failed: %w", &room.LimitError{Max: 5}))
	if limit.Message != (&room.LimitError{Max: 5}).Error() {
		t.Errorf("limit message = %q", limit.Message)
	}

	validation := classifyRoomError(fmt.Errorf("send-message request failed: %w", room.ErrMessageEmpty))
	if validation.Message != room.ErrMessageEmpty.Error() {
		t.Errorf("validation message = %q, want %q", validation.Message, room.ErrMessageEmpty.Error())
	}

	internal := classifyRoomError(errors.New("secret connection string"))
	if internal.Message != errInternal.Message {
		t.Errorf("internal message = %q, must not echo the cause", internal.Message)
	}
}

func TestClassifyAuthError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrUserExists, http.StatusConflict},
		{auth.ErrInvalidEmail, http.StatusBadRequest},
		{auth.ErrWeakPassword, http.StatusBadRequest},
		{auth.ErrPasswordTooLong, http.StatusBadRequest},
		{auth.ErrNameTooLong, http.StatusBadRequest},
		{auth.ErrInvalidToken, http.StatusUnauthorized},
		{auth.ErrExpiredToken, http.StatusUnauthorized},
		{auth.ErrRevokedToken, http.StatusUnauthorized},
		{auth.ErrUserNotFound, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := classifyAuthError(fmt.Errorf("wrapped: %w", tt.err)); got.Status != tt.wantStatus {
				t.Errorf("classifyAuthError() status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}
