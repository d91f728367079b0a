package auth

import (
	"errors"
	"strings"
)

// remoteErrors is ordered so that more specific messages are matched first.
var remoteErrors = []error{
	ErrRevokedToken,
	ErrExpiredToken,
	ErrInvalidToken,
	ErrInvalidCredentials,
	ErrInvalidEmail,
	ErrWeakPassword,
	ErrPasswordTooLong,
	ErrNameTooLong,
	ErrUserExists,
	ErrUserNotFound,
}

// errorFromRemote restores a sentinel error from the text of an error received
// over a request-reply call.
func errorFromRemote(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, known := range remoteErrors {
		if strings.Contains(msg, known.Error()) {
			return &remoteError{sentinel: known, msg: msg}
		}
	}
	return err
}

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

// tokenErrorCode is the reason carried by an invalid ValidateTokenResponse.
func tokenErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return ErrExpiredToken.Error()
	case errors.Is(err, ErrRevokedToken):
		return ErrRevokedToken.Error()
	default:
		return ErrInvalidToken.Error()
	}
}
