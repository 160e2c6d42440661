package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relayhub/relay-gateway/internal/dispatch"
)

// Role is a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in a session. Assistant messages either carry both
// a model and a performance snapshot, or neither.
type ChatMessage struct {
	ID          string                `json:"id"`
	Role        Role                  `json:"role"`
	Content     string                `json:"content"`
	Model       string                `json:"model,omitempty"`
	Reasoning   string                `json:"reasoning,omitempty"`
	Performance *dispatch.Performance `json:"performance,omitempty"`
}

// Session is one user's conversation. History lives only in memory and is
// destroyed on reset.
type Session struct {
	ID        string
	UserID    string
	History   []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store keeps active sessions keyed by user id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// AddUserMessage records a user turn and returns the stored message.
func (s *Store) AddUserMessage(userID, content string) ChatMessage {
	msg := ChatMessage{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: content,
	}
	s.append(userID, msg)
	return msg
}

// AddAssistantMessage records an assistant turn. Model and performance must
// travel together: when either is missing, both are dropped and the message
// is stored as a plain reply.
func (s *Store) AddAssistantMessage(userID, content, model, reasoning string, perf *dispatch.Performance) ChatMessage {
	if model == "" || perf == nil {
		model = ""
		perf = nil
	}
	msg := ChatMessage{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Content:     content,
		Model:       model,
		Reasoning:   reasoning,
		Performance: perf,
	}
	s.append(userID, msg)
	return msg
}

// History returns a copy of the user's message list.
func (s *Store) History(userID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	out := make([]ChatMessage, len(sess.History))
	copy(out, sess.History)
	return out
}

// Reset destroys the user's session.
func (s *Store) Reset(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *Store) append(userID string, msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		now := time.Now()
		sess = &Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.sessions[userID] = sess
	}
	sess.History = append(sess.History, msg)
	sess.UpdatedAt = time.Now()
}
