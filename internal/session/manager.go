// Package session keeps short per-session conversation history in
// memory.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Exchange is one question and the answer it got.
type Exchange struct {
	Question string
	Answer   string
}

// Manager stores conversation history per session id, capped at a
// fixed number of recent exchanges. Safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string][]Exchange
	maxHistory int
}

// NewManager creates a session manager keeping the last maxHistory
// exchanges per session.
func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &Manager{
		sessions:   map[string][]Exchange{},
		maxHistory: maxHistory,
	}
}

// Create starts a new session and returns its id.
func (m *Manager) Create() string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// Record appends an exchange to a session, creating the session when
// it does not exist, and drops the oldest exchanges beyond the cap.
func (m *Manager) Record(id, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[id], Exchange{Question: question, Answer: answer})
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}
	m.sessions[id] = history
}

// History returns a copy of the session's exchanges, oldest first.
func (m *Manager) History(id string) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.sessions[id]
	out := make([]Exchange, len(history))
	copy(out, history)
	return out
}

// FormatHistory renders a session's history as prompt context. Empty
// string for unknown or fresh sessions.
func (m *Manager) FormatHistory(id string) string {
	history := m.History(id)
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ex := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", ex.Question, ex.Answer)
	}
	return b.String()
}

// Clear removes a session and its history.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
