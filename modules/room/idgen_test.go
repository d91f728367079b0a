package room

import "testing"

func TestNewRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewRoomID()
		if err != nil {
			t.Fatalf("NewRoomID() error = %v", err)
		}
		if !IsValidRoomID(id) {
			t.Errorf("NewRoomID() = %q, not a valid room id", id)
		}
		seen[id] = true
	}

	if len(seen) < 95 {
		t.Errorf("NewRoomID() produced only %d distinct ids out of 100", len(seen))
	}
}

func TestIsValidRoomID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid", "r-abc123", true},
		{"missing prefix", "abc12345", false},
		{"too short", "r-abc", false},
		{"too long", "r-abc1234", false},
		{"uppercase", "r-ABC123", false},
		{"symbols", "r-abc_12", false},
		{"demo room", "demo-room-123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidRoomID(tt.id); got != tt.want {
				t.Errorf("IsValidRoomID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}
