package store

import (
	"sync"

	"github.com/google/uuid"
)

// lockTokens remembers the token this process wrote for each lock it
// holds, so release only removes locks we own.
type lockTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newLockTokens() *lockTokens {
	return &lockTokens{tokens: make(map[string]string)}
}

func (l *lockTokens) next() string { return uuid.NewString() }

func (l *lockTokens) put(key, token string) {
	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
}

func (l *lockTokens) take(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tokens[key]
	delete(l.tokens, key)
	return t, ok
}
