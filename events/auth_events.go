package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Session change kinds carried by SessionChangedEvent.
const (
	SessionSignedIn  = "SIGNED_IN"
	SessionSignedOut = "SIGNED_OUT"
)

// SessionChangedEvent is emitted when a user signs in or out.
type SessionChangedEvent struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionChangedV1 notifies subscribers about session transitions.
var SessionChangedV1 = helper.EventDefinition[SessionChangedEvent](
	"auth",
	"SessionChanged",
	"v1",
)
