package room

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated is returned when an operation is invoked without a known user.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrRoomNotFound is returned when no room has the requested id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when an unsubscribed room is at its participant cap.
	ErrRoomFull = errors.New("room participant limit reached")
	// ErrNotParticipant is returned when a non-participant tries to chat or edit.
	ErrNotParticipant = errors.New("user is not a participant of this room")
	// ErrNotOwner is returned when a non-owner requests a subscription upgrade.
	ErrNotOwner = errors.New("only the room owner can upgrade the subscription")
	// ErrRevisionConflict is returned when a code update is based on a stale revision.
	ErrRevisionConflict = errors.New("room revision conflict")
	// ErrPreviewLocked is returned when a preview is requested for an unsubscribed room.
	ErrPreviewLocked = errors.New("preview requires a subscription")
	// ErrSnapshotConflict is returned when another writer updated the persisted room list.
	ErrSnapshotConflict = errors.New("room snapshot was modified concurrently")
	// ErrSnapshotTooLarge is returned when a mutation would push the persisted room
	// list past the snapshot budget.
	ErrSnapshotTooLarge = errors.New("room data exceeds the storage limit")
)

// Validation errors.
var (
	ErrRoomNameEmpty       = errors.New("room name cannot be empty")
	ErrRoomNameTooLong     = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid     = errors.New("room name contains invalid characters")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrMessageEmpty        = errors.New("message content cannot be empty")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrMessageInvalid      = errors.New("message contains invalid characters")
	ErrCodeTooLong         = errors.New("code exceeds maximum size")
	ErrCodeInvalid         = errors.New("code contains invalid characters")
	ErrRoomIDEmpty         = errors.New("room id is required")
)

// LimitError reports a join rejected by the participant cap.
type LimitError struct {
	Max int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: this room has reached the maximum of %d participants, "+
		"the room owner needs to upgrade to allow more participants", ErrRoomFull, e.Max)
}

// Unwrap lets errors.Is match ErrRoomFull.
func (e *LimitError) Unwrap() error {
	return ErrRoomFull
}

// knownErrors is ordered so that more specific messages are matched first.
var knownErrors = []error{
	ErrUnauthenticated,
	ErrRoomNotFound,
	ErrRoomFull,
	ErrNotParticipant,
	ErrNotOwner,
	ErrRevisionConflict,
	ErrPreviewLocked,
	ErrSnapshotConflict,
	ErrSnapshotTooLarge,
	ErrRoomNameEmpty,
	ErrRoomNameTooLong,
	ErrRoomNameInvalid,
	ErrUnsupportedLanguage,
	ErrMessageEmpty,
	ErrMessageTooLong,
	ErrMessageInvalid,
	ErrCodeTooLong,
	ErrCodeInvalid,
	ErrRoomIDEmpty,
}

// errorFromRemote restores a sentinel error from the text of an error
// received over a request-reply call. The original text is preserved.
func errorFromRemote(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, known := range knownErrors {
		if !strings.Contains(msg, known.Error()) {
			continue
		}
		if known == ErrRoomFull {
			var limit int
			if i := strings.Index(msg, limitMarker); i >= 0 {
				if _, scanErr := fmt.Sscanf(msg[i+len(limitMarker):], "%d", &limit); scanErr == nil {
					return &LimitError{Max: limit}
				}
			}
		}
		return &remoteError{sentinel: known, msg: msg}
	}
	return err
}

const limitMarker = "maximum of "

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string {
	return e.msg
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}

var validationErrors = []error{
	ErrRoomNameEmpty, ErrRoomNameTooLong, ErrRoomNameInvalid, ErrUnsupportedLanguage,
	ErrMessageEmpty, ErrMessageTooLong, ErrMessageInvalid, ErrCodeTooLong,
	ErrCodeInvalid, ErrRoomIDEmpty,
}

// IsValidationError reports whether err is caused by invalid input.
func IsValidationError(err error) bool {
	return ValidationReason(err) != nil
}

// ValidationReason returns the validation sentinel err wraps, or nil.
func ValidationReason(err error) error {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return v
		}
	}
	return nil
}
