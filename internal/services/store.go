package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"minefield-backend/internal/models"
	"minefield-backend/pkg/logger"
)

// SessionPersistence is the write-through backing for the in-process store.
// A nil persistence keeps sessions in memory only (tests, single-node dev).
type SessionPersistence interface {
	SaveGameSession(ctx context.Context, session *models.GameSession) error
	GetGameSession(ctx context.Context, gameID string) (*models.GameSession, error)
	UpdateGameSession(ctx context.Context, session *models.GameSession) error
	CompleteGameSession(ctx context.Context, userID int64, gameID string) error
}

// SessionStore holds every in-progress game session and serializes all
// mutation per session id. Sessions are locked individually; operations on
// different sessions never contend. A terminal session leaves the in-memory
// registry and survives only in persistence, read-only.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	persist  SessionPersistence
}

type sessionEntry struct {
	mu      sync.Mutex
	session *models.GameSession
}

func NewSessionStore(persist SessionPersistence) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		persist:  persist,
	}
}

// Create registers a new active session and persists it.
func (st *SessionStore) Create(ctx context.Context, session *models.GameSession) error {
	st.mu.Lock()
	if _, exists := st.sessions[session.ID]; exists {
		st.mu.Unlock()
		return fmt.Errorf("%w: session %s already exists", ErrInternal, session.ID)
	}
	st.sessions[session.ID] = &sessionEntry{session: session}
	st.mu.Unlock()

	if st.persist != nil {
		if err := st.persist.SaveGameSession(ctx, session); err != nil {
			st.mu.Lock()
			delete(st.sessions, session.ID)
			st.mu.Unlock()
			return fmt.Errorf("%w: persist session: %v", ErrInternal, err)
		}
	}

	return nil
}

// Get returns a read-only snapshot of the session.
func (st *SessionStore) Get(ctx context.Context, id string) (*models.GameSession, error) {
	st.mu.RLock()
	entry, ok := st.sessions[id]
	st.mu.RUnlock()

	if ok {
		entry.mu.Lock()
		snapshot := *entry.session
		entry.mu.Unlock()
		return &snapshot, nil
	}

	if st.persist != nil {
		return st.persist.GetGameSession(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Mutate runs fn with exclusive ownership of the session. fn returns whether
// it changed the session; changes are written through before the lock is
// released, so no caller ever observes a state change that is not yet
// settled. An Active session found only in persistence (process restart) is
// re-registered first and mutated under the same lock discipline as any
// other. Terminal sessions are handed to fn as a copy — fn can answer
// replays from them but commits nothing.
func (st *SessionStore) Mutate(ctx context.Context, id string, fn func(*models.GameSession) (bool, error)) error {
	st.mu.RLock()
	entry, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		if st.persist == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		session, err := st.persist.GetGameSession(ctx, id)
		if err != nil {
			return err
		}
		if session.Status.IsTerminal() {
			snapshot := *session
			_, err = fn(&snapshot)
			return err
		}
		entry = st.recover(id, session)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	wasActive := session.Status == models.StatusActive

	mutated, err := fn(session)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}

	session.UpdatedAt = time.Now()

	// The session has already settled; a failed write-through must not turn
	// a committed outcome into an error. A stale persisted copy heals on the
	// next mutation through the settlement refs.
	if st.persist != nil {
		if err := st.persist.UpdateGameSession(ctx, session); err != nil {
			logger.Warn(ctx).Err(err).Str("game_id", session.ID).Msg("Failed to persist session mutation")
		} else if wasActive && session.Status.IsTerminal() {
			if err := st.persist.CompleteGameSession(ctx, session.UserID, session.ID); err != nil {
				logger.Warn(ctx).Err(err).Str("game_id", session.ID).Msg("Failed to move session to completed history")
			}
		}
	}

	if session.Status.IsTerminal() {
		st.mu.Lock()
		delete(st.sessions, id)
		st.mu.Unlock()
	}

	return nil
}

// recover puts an Active session loaded from persistence back into the
// registry. Double-checked so two concurrent recoveries share one entry.
func (st *SessionStore) recover(id string, session *models.GameSession) *sessionEntry {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.sessions[id]; ok {
		return existing
	}
	entry := &sessionEntry{session: session}
	st.sessions[id] = entry
	return entry
}

// Len reports the number of in-flight sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
