package api

import (
	"encoding/json"
	"time"
)

// Session is a user's conversation context. UpdatedAt advances on every
// get-or-create and on every message append.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetOrCreateSessionRequest looks up or creates a session. An empty
// SessionID asks the service to generate one.
type GetOrCreateSessionRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// AddMessagesRequest appends messages to a session's log in call order.
type AddMessagesRequest struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

// AddMessagesResponse reports how many messages were appended.
type AddMessagesResponse struct {
	Success      bool `json:"success"`
	MessageCount int  `json:"message_count"`
}

// GetMessagesRequest reads a window of a session's log. Limit 0 means the
// full log from Offset onward.
type GetMessagesRequest struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// GetMessagesResponse carries the requested window plus the full log
// length, regardless of pagination.
type GetMessagesResponse struct {
	Messages   []ChatMessage `json:"messages"`
	TotalCount int           `json:"total_count"`
}

// DeleteSessionRequest removes a session and its messages. Memories for
// the session's user are untouched.
type DeleteSessionRequest struct {
	SessionID string `json:"session_id"`
}

// DeleteSessionResponse reports whether a session existed.
type DeleteSessionResponse struct {
	Success bool `json:"success"`
}

// SaveMemoryRequest upserts a memory value. An empty SessionID writes the
// user-global slot; a session id writes a slot disjoint from the global
// one for the same key.
type SaveMemoryRequest struct {
	UserID    string          `json:"user_id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	SessionID string          `json:"session_id,omitempty"`
}

// SaveMemoryResponse acknowledges the write.
type SaveMemoryResponse struct {
	Success bool `json:"success"`
}

// GetMemoryRequest reads memory. An empty Key returns every entry for the
// user in the selected scope.
type GetMemoryRequest struct {
	UserID    string `json:"user_id"`
	Key       string `json:"key,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// GetMemoryResponse maps keys to their stored JSON values.
type GetMemoryResponse struct {
	Memories map[string]json.RawMessage `json:"memories"`
}

// DeleteMemoryRequest removes one memory slot.
type DeleteMemoryRequest struct {
	UserID    string `json:"user_id"`
	Key       string `json:"key"`
	SessionID string `json:"session_id,omitempty"`
}

// DeleteMemoryResponse reports whether the slot existed.
type DeleteMemoryResponse struct {
	Success bool `json:"success"`
}

// ClearUserMemoryRequest removes every memory for a user across all scopes.
type ClearUserMemoryRequest struct {
	UserID string `json:"user_id"`
}

// ClearUserMemoryResponse reports how many entries were removed.
type ClearUserMemoryResponse struct {
	Count int `json:"count"`
}
