package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	tests := []struct {
		name     string
		password string
		attempt  string
		want     bool
	}{
		{name: "correct password", password: "correct-horse", attempt: "correct-horse", want: true},
		{name: "wrong password", password: "correct-horse", attempt: "battery-staple", want: false},
		{name: "case sensitive", password: "Password123", attempt: "password123", want: false},
		{name: "unicode", password: "pässwörd-ünïcode", attempt: "pässwörd-ünïcode", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			if err != nil {
				t.Fatalf("Hash() error = %v", err)
			}
			if hash == tt.password {
				t.Error("Hash() returned the plaintext password")
			}
			if got := hasher.Verify(tt.attempt, hash); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordHasher_UniqueHashes(t *testing.T) {
	hasher := NewPasswordHasherWithCost(bcrypt.MinCost)

	first, _ := hasher.Hash("same-password")
	second, _ := hasher.Hash("same-password")
	if first == second {
		t.Error("Hash() should salt each hash")
	}
}

func TestNewPasswordHasherWithCost(t *testing.T) {
	tests := []struct {
		cost int
		want int
	}{
		{cost: bcrypt.MinCost, want: bcrypt.MinCost},
		{cost: 10, want: 10},
		{cost: 0, want: DefaultBcryptCost},
		{cost: bcrypt.MaxCost + 1, want: DefaultBcryptCost},
	}

	for _, tt := range tests {
		if got := NewPasswordHasherWithCost(tt.cost).cost; got != tt.want {
			t.Errorf("NewPasswordHasherWithCost(%d).cost = %d, want %d", tt.cost, got, tt.want)
		}
	}
}

func TestPasswordHasher_VerifyInvalidHash(t *testing.T) {
	hasher := NewPasswordHasher()
	if hasher.Verify("anything", "not-a-bcrypt-hash") {
		t.Error("Verify() should reject a malformed hash")
	}
}
