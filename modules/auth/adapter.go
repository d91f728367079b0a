package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/codehuddle/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	SignUp(ctx context.Context, email, password, fullName string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken, refreshToken string) error
	GetSession(ctx context.Context, accessToken string) (*domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// SignUp registers an account and returns its first session.
func (a *AuthAdapter) SignUp(ctx context.Context, email, password, fullName string) (*domain.Session, error) {
	req := SignUpRequest{Email: email, Password: password, FullName: fullName}
	var resp SessionResponse
	if err := callService(ctx, a.container, ServiceSignUp, &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// SignIn authenticates with email and password.
func (a *AuthAdapter) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	req := SignInRequest{Email: email, Password: password}
	var resp SessionResponse
	if err := callService(ctx, a.container, ServiceSignIn, &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// SignOut revokes the given tokens.
func (a *AuthAdapter) SignOut(ctx context.Context, accessToken, refreshToken string) error {
	req := SignOutRequest{AccessToken: accessToken, RefreshToken: refreshToken}
	var resp SignOutResponse
	return callService(ctx, a.container, ServiceSignOut, &req, &resp)
}

// GetSession returns the user behind an access token.
func (a *AuthAdapter) GetSession(ctx context.Context, accessToken string) (*domain.User, error) {
	req := GetSessionRequest{AccessToken: accessToken}
	var resp GetSessionResponse
	if err := callService(ctx, a.container, ServiceGetSession, &req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Refresh exchanges a refresh token for a new session.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp SessionResponse
	if err := callService(ctx, a.container, ServiceRefreshSession, &req, &resp); err != nil {
		return nil, err
	}
	return &resp.Session, nil
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := callService(ctx, a.container, ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}

	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %w", errorFromRemote(errors.New(resp.Error)))
	}

	claims := resp.Claims
	return &claims, nil
}

// GetUser retrieves a user by ID.
func (a *AuthAdapter) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	req := GetUserRequest{UserID: userID}
	var resp GetUserResponse
	if err := callService(ctx, a.container, ServiceGetUser, &req, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, errorFromRemote(err))
	}
	return nil
}
