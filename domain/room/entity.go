package room

import (
	"fmt"
	"time"

	"github.com/example/codehuddle/domain/user"
)

// DefaultMaxParticipants is the participant cap of an unsubscribed room.
const DefaultMaxParticipants = 5

// UnlimitedParticipants is stored in MaxParticipants once a room is subscribed.
const UnlimitedParticipants = 0

// Supported languages.
const (
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"
	LanguagePython     = "python"
	LanguageHTML       = "html"
	LanguageCSS        = "css"
)

// DefaultLanguage is used when a room is created without a language.
const DefaultLanguage = LanguageJavaScript

// Languages lists the supported languages in display order.
var Languages = []string{
	LanguageJavaScript,
	LanguageTypeScript,
	LanguagePython,
	LanguageHTML,
	LanguageCSS,
}

// Room is a named collaborative session with one code buffer,
// a chat history and a participant list.
type Room struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	OwnerID         string      `json:"ownerId"`
	Code            string      `json:"code"`
	Language        string      `json:"language"`
	Participants    []user.User `json:"participants"`
	Messages        []Message   `json:"messages"`
	CreatedAt       time.Time   `json:"createdAt"`
	HasSubscription bool        `json:"hasSubscription"`
	MaxParticipants int         `json:"maxParticipants"`
	Revision        uint64      `json:"revision"`
}

// Message is a chat message. SenderName is copied at send time and never re-resolved.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// HasParticipant reports whether the user is listed as a participant.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Participant returns the participant entry for the user.
func (r *Room) Participant(userID string) (user.User, bool) {
	for _, p := range r.Participants {
		if p.ID == userID {
			return p, true
		}
	}
	return user.User{}, false
}

// IsFull reports whether a new participant would exceed the cap.
func (r *Room) IsFull() bool {
	if r.HasSubscription || r.MaxParticipants <= UnlimitedParticipants {
		return false
	}
	return len(r.Participants) >= r.MaxParticipants
}

// IsOwner reports whether the user created the room.
func (r *Room) IsOwner(userID string) bool {
	return r.OwnerID == userID
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	r.Participants = append([]user.User(nil), r.Participants...)
	r.Messages = append([]Message(nil), r.Messages...)
	if r.Participants == nil {
		r.Participants = []user.User{}
	}
	if r.Messages == nil {
		r.Messages = []Message{}
	}
	return r
}

// Summary returns a copy without the code buffer and chat history.
func (r Room) Summary() Room {
	r = r.Clone()
	r.Code = ""
	r.Messages = []Message{}
	return r
}

// DefaultCode returns the code a freshly created room starts with.
func DefaultCode(name string) string {
	return fmt.Sprintf("// Welcome to %s\n\n// Start coding here", name)
}

// IsSupportedLanguage reports whether the language can be selected for a room.
func IsSupportedLanguage(language string) bool {
	for _, l := range Languages {
		if l == language {
			return true
		}
	}
	return false
}

// HighlightClass maps a room language to its syntax highlighter grammar.
func HighlightClass(language string) string {
	switch language {
	case LanguageHTML:
		return "markup"
	case LanguageJavaScript, LanguageTypeScript, LanguagePython, LanguageCSS:
		return language
	default:
		return LanguageJavaScript
	}
}

// Demo room seeded into an empty room list.
const (
	DemoRoomID   = "demo-room-123"
	DemoRoomName = "JavaScript Workshop"
	DemoOwnerID  = "1"
)

// NewDemoRoom builds the workshop room offered to first-time users.
func NewDemoRoom(createdAt time.Time) Room {
	return Room{
		ID:              DemoRoomID,
		Name:            DemoRoomName,
		OwnerID:         DemoOwnerID,
		Code:            "// Welcome to JavaScript Workshop\nconsole.log(\"Hello world!\");\n\n// Start coding here",
		Language:        LanguageJavaScript,
		Participants:    []user.User{},
		Messages:        []Message{},
		CreatedAt:       createdAt,
		HasSubscription: false,
		MaxParticipants: DefaultMaxParticipants,
		Revision:        1,
	}
}
