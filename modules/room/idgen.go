package room

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	roomIDPrefix   = "r-"
	roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIDLength   = 6

	// maxIDAttempts bounds the retries when a generated id collides.
	maxIDAttempts = 10
)

// NewRoomID generates a short room id such as "r-k3x9qa".
func NewRoomID() (string, error) {
	suffix, err := gonanoid.Generate(roomIDAlphabet, roomIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate room id: %w", err)
	}
	return roomIDPrefix + suffix, nil
}

// IsValidRoomID reports whether id has the shape produced by NewRoomID.
func IsValidRoomID(id string) bool {
	if len(id) != len(roomIDPrefix)+roomIDLength || id[:len(roomIDPrefix)] != roomIDPrefix {
		return false
	}
	for _, c := range id[len(roomIDPrefix):] {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
