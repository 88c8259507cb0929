package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateMessageContent validates chat message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateUserID validates a client-supplied opaque user id.
func ValidateUserID(id string) error {
	if len(id) == 0 {
		return errors.New("user_id cannot be empty")
	}
	if len(id) > 100 {
		return errors.New("user_id exceeds maximum length")
	}
	return nil
}

// ValidateUsername validates a display name.
func ValidateUsername(name string) error {
	if len(name) > 100 {
		return errors.New("username exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("username must be valid UTF-8")
	}
	return nil
}
