package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/example/codehuddle/domain/user"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestService(t *testing.T) (*Service, *AccountRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := NewAccountRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewService(repo, NewPasswordHasherWithCost(bcrypt.MinCost), NewJWTManager(testJWTConfig())), repo
}

func TestService_SignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		fullName string
		wantErr  error
	}{
		{name: "valid", email: "ada@example.com", password: "password123"},
		{name: "normalized email", email: "  Grace@Example.COM ", password: "password123"},
		{name: "invalid email", email: "not-an-email", password: "password123", wantErr: ErrInvalidEmail},
		{name: "display-name email", email: "Ada <ada2@example.com>", password: "password123", wantErr: ErrInvalidEmail},
		{name: "empty email", email: "", password: "password123", wantErr: ErrInvalidEmail},
		{name: "short password", email: "short@example.com", password: "1234567", wantErr: ErrWeakPassword},
		{name: "long password", email: "long@example.com", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
		{name: "boundary password", email: "edge@example.com", password: strings.Repeat("a", 72)},
		{name: "long name", email: "name@example.com", password: "password123", fullName: strings.Repeat("n", 101), wantErr: ErrNameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := svc.SignUp(ctx, tt.email, tt.password, tt.fullName)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SignUp() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SignUp() unexpected error = %v", err)
			}
			if session.User.ID == "" || session.Tokens.AccessToken == "" || session.Tokens.RefreshToken == "" {
				t.Errorf("SignUp() returned incomplete session %+v", session)
			}
			if session.User.Email != normalizeEmail(tt.email) {
				t.Errorf("Email = %q, want %q", session.User.Email, normalizeEmail(tt.email))
			}
			if session.Tokens.TokenType != "Bearer" {
				t.Errorf("TokenType = %q, want Bearer", session.Tokens.TokenType)
			}
		})
	}
}

func TestService_SignUpDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	if _, err := svc.SignUp(ctx, "ada@example.com", "password123", ""); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(ctx, "ADA@example.com", "password456", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("SignUp() duplicate error = %v, want ErrUserExists", err)
	}
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	created, err := svc.SignUp(ctx, "ada@example.com", "password123", "Ada Lovelace")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "ada@example.com", password: "password123"},
		{name: "email case ignored", email: "ADA@EXAMPLE.COM", password: "password123"},
		{name: "wrong password", email: "ada@example.com", password: "password124", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "nobody@example.com", password: "password123", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := svc.SignIn(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SignIn() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SignIn() unexpected error = %v", err)
			}
			if session.User.ID != created.User.ID {
				t.Errorf("User.ID = %q, want %q", session.User.ID, created.User.ID)
			}
			if session.User.Name != "Ada Lovelace" {
				t.Errorf("User.Name = %q, want Ada Lovelace", session.User.Name)
			}
		})
	}
}

func TestService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	session, err := svc.SignUp(ctx, "ada@example.com", "password123", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, claims, err := svc.GetSession(ctx, session.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if user.ID != session.User.ID || claims.UserID != session.User.ID {
		t.Errorf("GetSession() user = %q, claims = %q, want %q", user.ID, claims.UserID, session.User.ID)
	}
	if claims.TokenID == "" || claims.ExpiresAt.IsZero() {
		t.Errorf("GetSession() claims missing token id or expiry: %+v", claims)
	}

	signedOut, err := svc.SignOut(ctx, session.Tokens.AccessToken, session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if signedOut.UserID != session.User.ID {
		t.Errorf("SignOut() user = %q, want %q", signedOut.UserID, session.User.ID)
	}

	if _, _, err := svc.GetSession(ctx, session.Tokens.AccessToken); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("GetSession() after sign-out error = %v, want ErrRevokedToken", err)
	}
	if _, err := svc.Refresh(ctx, session.Tokens.RefreshToken); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("Refresh() after sign-out error = %v, want ErrRevokedToken", err)
	}
	if _, err := svc.SignOut(ctx, session.Tokens.AccessToken, ""); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("second SignOut() error = %v, want ErrRevokedToken", err)
	}

	// Other sessions of the same user stay valid.
	other, err := svc.SignIn(ctx, "ada@example.com", "password123")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if _, err := svc.ValidateToken(ctx, other.Tokens.AccessToken); err != nil {
		t.Errorf("ValidateToken() for new session error = %v", err)
	}
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	session, err := svc.SignUp(ctx, "ada@example.com", "password123", "")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	refreshed, err := svc.Refresh(ctx, session.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.User.ID != session.User.ID {
		t.Errorf("Refresh() user = %q, want %q", refreshed.User.ID, session.User.ID)
	}
	if _, err := svc.ValidateToken(ctx, refreshed.Tokens.AccessToken); err != nil {
		t.Errorf("ValidateToken() on refreshed token error = %v", err)
	}

	if _, err := svc.Refresh(ctx, session.Tokens.RefreshToken); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("Refresh() reuse error = %v, want ErrRevokedToken", err)
	}
	if _, err := svc.Refresh(ctx, session.Tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Refresh() with access token error = %v, want ErrInvalidToken", err)
	}
}

func TestService_GetUserDisplayName(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupTestService(t)

	accounts := []domain.Account{
		{ID: "full", Email: "full@example.com", PasswordHash: "x", FullName: "Full Name", Username: "handle"},
		{ID: "handle", Email: "handle@example.com", PasswordHash: "x", Username: "handle"},
		{ID: "email", Email: "local.part@example.com", PasswordHash: "x"},
		{ID: "blank", Email: "@example.com", PasswordHash: "x", FullName: "   "},
	}
	for i := range accounts {
		if err := repo.Create(ctx, &accounts[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		id   string
		want string
	}{
		{id: "full", want: "Full Name"},
		{id: "handle", want: "handle"},
		{id: "email", want: "local.part"},
		{id: "blank", want: "User"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			user, err := svc.GetUser(ctx, tt.id)
			if err != nil {
				t.Fatalf("GetUser() error = %v", err)
			}
			if user.Name != tt.want {
				t.Errorf("Name = %q, want %q", user.Name, tt.want)
			}
		})
	}

	if _, err := svc.GetUser(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser(missing) error = %v, want ErrUserNotFound", err)
	}
	if _, err := svc.GetUser(ctx, ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser(\"\") error = %v, want ErrUserNotFound", err)
	}
}

func TestService_GetUserConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t)

	session, err := svc.SignUp(ctx, "ada@example.com", "password123", "Ada")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := svc.GetUser(ctx, session.User.ID)
			if err != nil {
				errs <- err
				return
			}
			if user.Name != "Ada" {
				errs <- errors.New("unexpected name " + user.Name)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("GetUser() concurrent error = %v", err)
	}
}

func TestService_PurgeExpiredRevocations(t *testing.T) {
	ctx := context.Background()
	svc, repo := setupTestService(t)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for _, tok := range []domain.RevokedToken{
		{TokenID: "old", UserID: "u1", ExpiresAt: now.Add(-time.Hour)},
		{TokenID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)},
	} {
		if err := repo.RevokeToken(ctx, &tok); err != nil {
			t.Fatalf("RevokeToken() error = %v", err)
		}
	}

	purged, err := svc.PurgeExpiredRevocations(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredRevocations() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	if revoked, _ := repo.IsRevoked(ctx, "old"); revoked {
		t.Error("expired revocation should be purged")
	}
	if revoked, _ := repo.IsRevoked(ctx, "live"); !revoked {
		t.Error("live revocation should be kept")
	}
}

func TestErrorFromRemote(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{msg: "sign-in: invalid email or password", want: ErrInvalidCredentials},
		{msg: "token has been revoked", want: ErrRevokedToken},
		{msg: "token has expired", want: ErrExpiredToken},
		{msg: "invalid refresh token: invalid token", want: ErrInvalidToken},
		{msg: "user with this email already exists", want: ErrUserExists},
	}

	for _, tt := range tests {
		if got := errorFromRemote(errors.New(tt.msg)); !errors.Is(got, tt.want) {
			t.Errorf("errorFromRemote(%q) does not match %v", tt.msg, tt.want)
		}
	}
}
