package user

import (
	"strings"
	"time"
)

// User is the identity shown to other participants of a room.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Account represents a registered account in the identity database.
type Account struct {
	ID           string `gorm:"primaryKey;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	FullName     string `gorm:"type:text"`
	Username     string `gorm:"type:text"`
	AvatarURL    string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the Account entity.
func (Account) TableName() string {
	return "accounts"
}

// DisplayName returns the name shown in rooms and chat.
// Falls back from full name to username to the email local part.
func (a *Account) DisplayName() string {
	if name := strings.TrimSpace(a.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(a.Username); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(a.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// ToUser converts the account into its public identity.
func (a *Account) ToUser() User {
	return User{
		ID:     a.ID,
		Name:   a.DisplayName(),
		Email:  a.Email,
		Avatar: a.AvatarURL,
	}
}

// RevokedToken records a signed-out access token until it would have expired anyway.
type RevokedToken struct {
	TokenID   string    `gorm:"primaryKey;type:text"`
	UserID    string    `gorm:"index;type:text"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName returns the table name for the RevokedToken entity.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Session is an authenticated user together with their tokens.
type Session struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Claims represents validated access token claims.
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
