package history

import (
	"sync"

	"availability-dashboard/internal/llm"
)

// DefaultMaxTurns bounds how many messages are replayed to the model per chat.
const DefaultMaxTurns = 20

// Manager keeps the recent question/answer turns of each chat in memory.
// Nothing is persisted; a restart starts every chat fresh.
type Manager struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[int64][]llm.Message
}

func NewManager(maxTurns int) *Manager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Manager{maxTurns: maxTurns, sessions: make(map[int64][]llm.Message)}
}

func (m *Manager) Reset(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}

func (m *Manager) AppendUser(chatID int64, content string) {
	m.append(chatID, llm.Message{Role: llm.RoleUser, Content: content})
}

func (m *Manager) AppendAssistant(chatID int64, content string) {
	m.append(chatID, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// AppendExchange records a question and its answer together so that
// concurrent updates of one chat never interleave halves of two exchanges.
func (m *Manager) AppendExchange(chatID int64, question, answer string) {
	m.append(chatID,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
}

func (m *Manager) append(chatID int64, msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := append(m.sessions[chatID], msgs...)
	if over := len(s) - m.maxTurns; over > 0 {
		s = append([]llm.Message(nil), s[over:]...)
	}
	m.sessions[chatID] = s
}

// Get returns a copy of the chat's turns, oldest first.
func (m *Manager) Get(chatID int64) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]llm.Message(nil), m.sessions[chatID]...)
}
