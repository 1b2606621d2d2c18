// Package session implements the in-process authoritative registry of
// active games. It is the sole owner of live Session/GameState instances;
// the Scheduler mutates them under each session's own lock.
package session

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pongarena/server/sim"
)

// ErrAlreadyInGame is returned by Create when either player already has an
// active session.
var ErrAlreadyInGame = errors.New("session: player already in a session")

// ErrNotFound is returned when a session id or player id has no session.
var ErrNotFound = errors.New("session: not found")

// DeriveID returns the deterministic session id for an ordered-lexicographic
// pair of player ids.
func DeriveID(player1, player2 string) string {
	ids := []string{player1, player2}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Session pairs two participants with their GameState. Player2ID may carry
// a "bot_" prefix, denoting a server-controlled opponent with no connection.
type Session struct {
	mu sync.Mutex

	ID               string
	Player1ID        string
	Player2ID        string
	State            sim.GameState
	LastUpdateTime   time.Time
	LastClientSync   time.Time
	GameStartedSent  bool
}

// IsBot reports whether Player2 is a server-controlled opponent.
func (s *Session) IsBot() bool {
	return strings.HasPrefix(s.Player2ID, "bot_")
}

// Lock and Unlock expose the session's own lock to callers (the Scheduler
// and Hub) that need to hold it across a multi-step mutation. No two
// session locks are ever held at once, and the store's index lock is never
// acquired while a session lock is held (Store.Count takes session locks
// under the index lock, always in that order).
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Snapshot returns a value copy of the session safe to read without the
// lock.
func (s *Session) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.mu = sync.Mutex{}
	return cp
}

// Store is the in-memory registry of active sessions, keyed by session id
// with a secondary playerId -> sessionId index.
type Store struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byPlayer map[string]string
}

// NewStore creates an empty session Store.
func NewStore() *Store {
	return &Store{
		byID:     make(map[string]*Session),
		byPlayer: make(map[string]string),
	}
}

// Create registers a new session, failing if either player already has one.
func (st *Store) Create(sess *Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.byPlayer[sess.Player1ID]; ok {
		return ErrAlreadyInGame
	}
	if !sess.IsBot() {
		if _, ok := st.byPlayer[sess.Player2ID]; ok {
			return ErrAlreadyInGame
		}
	}

	st.byID[sess.ID] = sess
	st.byPlayer[sess.Player1ID] = sess.ID
	if !sess.IsBot() {
		st.byPlayer[sess.Player2ID] = sess.ID
	}
	return nil
}

// GetByPlayer looks up the active session for a player id, if any.
func (st *Store) GetByPlayer(playerID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	sess, ok := st.byID[id]
	return sess, ok
}

// GetByID looks up a session by its id.
func (st *Store) GetByID(sessionID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.byID[sessionID]
	return sess, ok
}

// Update replaces nothing: Sessions are pointers owned by the Store, so
// in-place mutation under the session lock already is the update. Update
// only records LastUpdateTime.
func (st *Store) Update(sess *Session) {
	sess.Lock()
	sess.LastUpdateTime = time.Now()
	sess.Unlock()
}

// Remove deletes a session and its player index entries.
func (st *Store) Remove(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.byID[sessionID]
	if !ok {
		return
	}
	delete(st.byID, sessionID)
	delete(st.byPlayer, sess.Player1ID)
	delete(st.byPlayer, sess.Player2ID)
}

// Snapshot returns a caller-owned slice of all live sessions, safe to
// iterate without holding the store lock.
func (st *Store) Snapshot() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.byID))
	for _, sess := range st.byID {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of active (non-gameOver) sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	n := 0
	for _, sess := range st.byID {
		sess.mu.Lock()
		if !sess.State.GameOver {
			n++
		}
		sess.mu.Unlock()
	}
	return n
}
