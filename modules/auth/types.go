package auth

import (
	domain "github.com/example/codehuddle/domain/user"
)

// Request-reply service names registered by the auth module.
const (
	ServiceSignUp         = "sign-up"
	ServiceSignIn         = "sign-in"
	ServiceSignOut        = "sign-out"
	ServiceGetSession     = "get-session"
	ServiceRefreshSession = "refresh-session"
	ServiceValidateToken  = "validate-token"
	ServiceGetUser        = "get-user"
)

// SignUpRequest represents an account registration request.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SignInRequest represents a sign-in request.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a signed-in user and their tokens.
type SessionResponse struct {
	Session domain.Session `json:"session"`
}

// SignOutRequest represents a sign-out request.
type SignOutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// SignOutResponse represents a sign-out response.
type SignOutResponse struct {
	UserID string `json:"user_id"`
}

// GetSessionRequest asks for the user behind an access token.
type GetSessionRequest struct {
	AccessToken string `json:"access_token"`
}

// GetSessionResponse carries the current user.
type GetSessionResponse struct {
	User   domain.User   `json:"user"`
	Claims domain.Claims `json:"claims"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid  bool          `json:"valid"`
	Claims domain.Claims `json:"claims,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// GetUserRequest represents a get user request.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse represents a get user response.
type GetUserResponse struct {
	User domain.User `json:"user"`
}
