// Package linktoken correlates a deferred user choice with a previously
// seen link. A recognized media link is registered under a short-lived
// token; the token travels through the prompt round-trip and is resolved
// back to the link exactly once when the user answers.
package linktoken

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound means the token is absent or was already consumed. This is
// a normal condition: prompts can be answered twice or long after the
// entry was evicted.
var ErrNotFound = errors.New("link token not found")

type entry struct {
	url       string
	createdAt time.Time
}

// Store is a bounded in-memory token table. Tokens are the registration
// time in milliseconds, nudged forward on collision so they stay strictly
// increasing within a process.
type Store struct {
	capacity int
	ttl      time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	tokens map[string]entry
	lastMS int64
}

// NewStore creates a token store. capacity bounds the table size; the
// oldest entry is evicted when a registration would exceed it. ttl bounds
// entry age for the periodic sweep.
func NewStore(capacity int, ttl time.Duration, log zerolog.Logger) *Store {
	return &Store{
		capacity: capacity,
		ttl:      ttl,
		logger:   log.With().Str("component", "linktoken").Logger(),
		tokens:   make(map[string]entry),
	}
}

// Register stores the url and returns its token.
func (s *Store) Register(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := time.Now().UnixMilli()
	if ms <= s.lastMS {
		ms = s.lastMS + 1
	}
	s.lastMS = ms

	if len(s.tokens) >= s.capacity {
		s.evictOldestLocked()
	}

	token := strconv.FormatInt(ms, 10)
	s.tokens[token] = entry{url: url, createdAt: time.Now()}
	return token
}

// Resolve returns the url registered under the token and removes the
// entry. A second resolve of the same token reports ErrNotFound.
func (s *Store) Resolve(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	delete(s.tokens, token)
	return e.url, nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Sweep removes entries older than the store's TTL. Registered with the
// scheduler; safe to call at any time.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for token, e := range s.tokens {
		if e.createdAt.Before(cutoff) {
			delete(s.tokens, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("swept expired link tokens")
	}
}

// evictOldestLocked drops the entry with the earliest creation time.
// Callers hold mu.
func (s *Store) evictOldestLocked() {
	var oldestToken string
	var oldestAt time.Time
	for token, e := range s.tokens {
		if oldestToken == "" || e.createdAt.Before(oldestAt) {
			oldestToken = token
			oldestAt = e.createdAt
		}
	}
	if oldestToken != "" {
		delete(s.tokens, oldestToken)
	}
}
