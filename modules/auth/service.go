package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/example/codehuddle/domain/user"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrInvalidCredentials is returned when sign-in credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrNameTooLong is returned when the full name exceeds MaxNameLength.
	ErrNameTooLong = errors.New("name must be at most 100 characters")
	// ErrRevokedToken is returned when a signed-out token is presented.
	ErrRevokedToken = errors.New("token has been revoked")
)

const (
	// MinPasswordLength is the minimum password length in bytes.
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit in bytes.
	MaxPasswordLength = 72
	// MaxNameLength is the maximum full name length in characters.
	MaxNameLength = 100
)

// Service handles authentication business logic.
type Service struct {
	repo   *AccountRepository
	hasher *PasswordHasher
	jwt    *JWTManager
	users  singleflight.Group
	now    func() time.Time
}

// NewService creates a new Service.
func NewService(repo *AccountRepository, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
		now:    time.Now,
	}
}

// SignUp creates a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*domain.Session, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	fullName = strings.TrimSpace(fullName)
	if utf8.RuneCountInString(fullName) > MaxNameLength {
		return nil, ErrNameTooLong
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return s.newSession(account)
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	account, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.newSession(account)
}

// SignOut revokes the access token and, when given, the refresh token.
// It returns the claims of the revoked access token.
func (s *Service) SignOut(ctx context.Context, accessToken, refreshToken string) (*domain.Claims, error) {
	claims, err := s.ValidateToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := s.revoke(ctx, claims.TokenID, claims.UserID, claims.ExpiresAt); err != nil {
		return nil, err
	}

	if refreshToken != "" {
		refresh, err := s.jwt.ValidateRefreshToken(refreshToken)
		if err == nil && refresh.UserID == claims.UserID {
			if err := s.revoke(ctx, refresh.ID, refresh.UserID, refresh.ExpiresAt.Time); err != nil {
				return nil, err
			}
		}
	}

	return claims, nil
}

// GetSession returns the user owning a valid access token.
func (s *Service) GetSession(ctx context.Context, accessToken string) (*domain.User, *domain.Claims, error) {
	claims, err := s.ValidateToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	account, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := s.revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.newSession(account)
}

// ValidateToken validates an access token and returns its claims.
func (s *Service) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	return &domain.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GetUser retrieves the public identity of an account. Concurrent lookups of
// the same id share one database query.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	v, err, _ := s.users.Do(userID, func() (any, error) {
		account, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return account.ToUser(), nil
	})
	if err != nil {
		return nil, err
	}
	user := v.(domain.User)
	return &user, nil
}

// PurgeExpiredRevocations removes revocations that no longer matter.
func (s *Service) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpiredRevocations(ctx, s.now())
}

func (s *Service) newSession(account *domain.Account) (*domain.Session, error) {
	tokens, err := s.generateTokenPair(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		User:   account.ToUser(),
		Tokens: *tokens,
	}, nil
}

func (s *Service) generateTokenPair(userID, email string) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}

func (s *Service) revoke(ctx context.Context, tokenID, userID string, expiresAt time.Time) error {
	err := s.repo.RevokeToken(ctx, &domain.RevokedToken{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *Service) checkRevoked(ctx context.Context, tokenID string) error {
	revoked, err := s.repo.IsRevoked(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return ErrRevokedToken
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
