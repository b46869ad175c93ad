package models

import "time"

// DefaultSessionTitle is the title every session starts with until the first
// exchange derives one from the opening user message.
const DefaultSessionTitle = "New Conversation"

// Session groups an ordered sequence of turns for a single user.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Turn    `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	IsCurrent bool      `json:"is_current"`
}
