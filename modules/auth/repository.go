package auth

import (
	"context"
	"errors"
	"time"

	domain "github.com/example/codehuddle/domain/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a user already exists.
	ErrUserExists = errors.New("user with this email already exists")
)

// AccountRepository handles account and token revocation persistence using GORM.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{
		db: db,
	}
}

// Migrate creates the tables used by the repository.
func (r *AccountRepository) Migrate() error {
	return r.db.AutoMigrate(&domain.Account{}, &domain.RevokedToken{})
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	result := r.db.WithContext(ctx).Create(account)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrUserExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	result := r.db.WithContext(ctx).First(&account, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// FindByEmail finds an account by email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	result := r.db.WithContext(ctx).First(&account, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &account, nil
}

// EmailExists checks if an account with the given email exists.
func (r *AccountRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.Account{}).Where("email = ?", email).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// RevokeToken records a token id as revoked. Revoking twice is not an error.
func (r *AccountRepository) RevokeToken(ctx context.Context, token *domain.RevokedToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(token).Error
}

// IsRevoked reports whether the token id was revoked.
func (r *AccountRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&domain.RevokedToken{}).Where("token_id = ?", tokenID).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

// PurgeExpiredRevocations deletes revocations for tokens that expired before now.
func (r *AccountRepository) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&domain.RevokedToken{})
	return result.RowsAffected, result.Error
}
