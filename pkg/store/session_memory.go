package store

import "sync"

// MemorySessionStore keeps sessions in-process for tests.
type MemorySessionStore struct {
	mu   sync.Mutex
	sess map[string]string
}

// NewMemorySessionStore initializes an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sess: make(map[string]string)}
}

func (m *MemorySessionStore) NewSession(userID string) (string, error) {
	token := randomToken(24)
	m.mu.Lock()
	m.sess[token] = userID
	m.mu.Unlock()
	return token, nil
}

func (m *MemorySessionStore) GetUserIDByToken(token string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.sess[token]
	return uid, ok, nil
}

func (m *MemorySessionStore) DeleteSession(token string) error {
	m.mu.Lock()
	delete(m.sess, token)
	m.mu.Unlock()
	return nil
}
