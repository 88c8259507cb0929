// Package model defines data structures for the chatroom relay.
package model

import (
	"time"
)

// User represents a chatroom participant. Users self-identify with an
// opaque user_id generated client-side; there is no authentication.
type User struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	IsOnline  bool      `json:"is_online"`
}

// VisitRequest is the request to track a user visit.
type VisitRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Emoji    string `json:"emoji,omitempty"`
}

// VisitResponse is the response after tracking a visit.
type VisitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OnlineUsersResponse lists users active within the presence window.
type OnlineUsersResponse struct {
	Success bool   `json:"success"`
	Users   []User `json:"users"`
	Count   int    `json:"count"`
}
