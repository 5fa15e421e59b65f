package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/lattice/pkg/api"
)

// memoryKey identifies one memory slot. An empty session is the
// user-global scope.
type memoryKey struct {
	user    string
	key     string
	session string
}

type memoryEntry struct {
	value     json.RawMessage
	updatedAt time.Time
}

// MemoryStore is the transient in-memory backend. A single mutex guards
// all three tables so every operation is atomic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*api.Session
	messages map[string][]api.ChatMessage
	memories map[memoryKey]memoryEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*api.Session),
		messages: make(map[string][]api.ChatMessage),
		memories: make(map[memoryKey]memoryEntry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, userID, sessionID string) (*api.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			sess.UpdatedAt = now
			return cloneSession(sess), nil
		}
	} else {
		sessionID = fmt.Sprintf("session_%s_%d", userID, now.Unix())
		if sess, ok := s.sessions[sessionID]; ok {
			sess.UpdatedAt = now
			return cloneSession(sess), nil
		}
	}

	sess := &api.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = sess
	return cloneSession(sess), nil
}

func (s *MemoryStore) AddMessages(_ context.Context, sessionID string, msgs []api.ChatMessage) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	now := s.now()
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		s.messages[sessionID] = append(s.messages[sessionID], m)
	}
	sess.UpdatedAt = now
	return len(msgs), nil
}

func (s *MemoryStore) GetMessages(_ context.Context, sessionID string, limit, offset int) ([]api.ChatMessage, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[sessionID]
	total := len(log)
	start, end := paginate(total, limit, offset)

	out := make([]api.ChatMessage, end-start)
	copy(out, log[start:end])
	return out, total, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return existed, nil
}

func (s *MemoryStore) SaveMemory(_ context.Context, userID, key string, value json.RawMessage, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.memories[memoryKey{userID, key, sessionID}] = memoryEntry{
		value:     stored,
		updatedAt: s.now(),
	}
	return nil
}

func (s *MemoryStore) GetMemory(_ context.Context, userID, key, sessionID string) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]json.RawMessage)
	if key != "" {
		if entry, ok := s.memories[memoryKey{userID, key, sessionID}]; ok {
			out[key] = cloneValue(entry.value)
		}
		return out, nil
	}
	for k, entry := range s.memories {
		if k.user == userID && k.session == sessionID {
			out[k.key] = cloneValue(entry.value)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteMemory(_ context.Context, userID, key, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{userID, key, sessionID}
	_, existed := s.memories[k]
	delete(s.memories, k)
	return existed, nil
}

func (s *MemoryStore) ClearUserMemory(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.memories {
		if k.user == userID {
			delete(s.memories, k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneSession(sess *api.Session) *api.Session {
	c := *sess
	return &c
}

func cloneValue(v json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
