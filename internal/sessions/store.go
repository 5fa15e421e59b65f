// Package sessions implements the platform's session service: ordered
// per-session message logs and user-scoped key-value memory behind a
// swappable storage interface.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/lattice/internal/config"
	"github.com/haasonsaas/lattice/pkg/api"
)

// ErrNotFound is returned by stores when a session or memory entry does
// not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for sessions, message logs, and
// memory. Backends must make each operation atomic with respect to
// concurrent callers; there are no cross-operation transactions (a session
// deletion and a memory write are independent).
//
// Memory entries are keyed by (user_id, key, session_id); an empty
// session_id is the user-global scope, disjoint from every session scope
// for the same key.
type Store interface {
	// GetOrCreate returns the session with the given id, creating it if
	// needed. An empty sessionID generates a fresh id. UpdatedAt advances
	// on every call.
	GetOrCreate(ctx context.Context, userID, sessionID string) (*api.Session, error)

	// AddMessages appends messages in call order and advances the
	// session's UpdatedAt. Unknown sessions yield ErrNotFound.
	AddMessages(ctx context.Context, sessionID string, msgs []api.ChatMessage) (int, error)

	// GetMessages returns the [offset : offset+limit] window of the log
	// (limit 0 means no limit) and the full log's length. A session with
	// no record returns an empty log, not an error.
	GetMessages(ctx context.Context, sessionID string, limit, offset int) ([]api.ChatMessage, int, error)

	// DeleteSession removes a session and its messages, never its user's
	// memories. Reports whether a session existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// SaveMemory upserts one memory slot, replacing any previous value.
	SaveMemory(ctx context.Context, userID, key string, value json.RawMessage, sessionID string) error

	// GetMemory returns the slot for (userID, key, sessionID), or, with an
	// empty key, every slot for the user in the selected scope. Missing
	// entries produce an empty map.
	GetMemory(ctx context.Context, userID, key, sessionID string) (map[string]json.RawMessage, error)

	// DeleteMemory removes one slot, reporting whether it existed.
	DeleteMemory(ctx context.Context, userID, key, sessionID string) (bool, error)

	// ClearUserMemory removes every entry for the user across all scopes
	// and returns the count removed.
	ClearUserMemory(ctx context.Context, userID string) (int, error)

	Close() error
}

// NewStore builds the backend selected by configuration. The in-memory
// backend is the default and the one tests use.
func NewStore(cfg *config.SessionsConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown sessions backend %q", cfg.Backend)
	}
}

// paginate clamps an offset/limit window onto a log of length n and
// returns the half-open index range.
func paginate(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
