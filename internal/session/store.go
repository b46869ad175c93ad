package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatgate/internal/models"
)

// ErrNotFound reports a session id that does not exist for the user,
// including ids owned by other users.
var ErrNotFound = errors.New("session not found")

const titleRuneLimit = 20

// Store owns all per-user session state in memory. The active-session id is
// never stored here; callers supply it on every operation so the store stays
// free of any request-scoped state.
type Store struct {
	mu    sync.Mutex
	users map[string]*userSessions
}

type userSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

// New builds an empty store.
func New() *Store {
	return &Store{users: make(map[string]*userSessions)}
}

func (s *Store) forUser(user string) *userSessions {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.users[user]
	if !ok {
		us = &userSessions{sessions: make(map[string]*models.Session)}
		s.users[user] = us
	}
	return us
}

func newSession(id string) *models.Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &models.Session{
		ID:        id,
		Title:     models.DefaultSessionTitle,
		Messages:  make([]models.Turn, 0),
		CreatedAt: time.Now().UTC(),
	}
}

// EnsureActive materializes the caller's active session when it does not
// exist yet, reusing the supplied id so the caller's pointer stays valid.
// It returns the active session id.
func (s *Store) EnsureActive(user, activeID string) string {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()
	if activeID != "" {
		if _, ok := us.sessions[activeID]; ok {
			return activeID
		}
	}
	se := newSession(activeID)
	us.sessions[se.ID] = se
	return se.ID
}

// Create adds a fresh session with a new unique id.
func (s *Store) Create(user string) models.Session {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()
	se := newSession("")
	for {
		if _, ok := us.sessions[se.ID]; !ok {
			break
		}
		se.ID = uuid.NewString()
	}
	us.sessions[se.ID] = se
	return *se
}

// List returns the user's sessions sorted newest-first, flagging the active
// one. The active session is materialized as a side effect so the listing
// always contains exactly one current entry.
func (s *Store) List(user, activeID string) ([]models.SessionInfo, string) {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()

	if activeID == "" || us.sessions[activeID] == nil {
		se := newSession(activeID)
		us.sessions[se.ID] = se
		activeID = se.ID
	}

	infos := make([]models.SessionInfo, 0, len(us.sessions))
	for id, se := range us.sessions {
		infos = append(infos, models.SessionInfo{
			ID:        id,
			Title:     se.Title,
			CreatedAt: se.CreatedAt,
			IsCurrent: id == activeID,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, activeID
}

// Switch verifies the session belongs to the user and returns a snapshot of
// its messages.
func (s *Store) Switch(user, id string) ([]models.Turn, error) {
	return s.History(user, id)
}

// History returns a copy of the session's ordered turns.
func (s *Store) History(user, id string) ([]models.Turn, error) {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()
	se, ok := us.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	turns := make([]models.Turn, len(se.Messages))
	copy(turns, se.Messages)
	return turns, nil
}

// Delete removes the session. When the deleted id is the caller's active
// session a replacement is created under the same lock, so the caller can
// repoint before the deletion becomes observable.
func (s *Store) Delete(user, id, activeID string) (newActiveID string, replaced bool, err error) {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()
	if _, ok := us.sessions[id]; !ok {
		return "", false, ErrNotFound
	}
	delete(us.sessions, id)
	if id != activeID {
		return "", false, nil
	}
	se := newSession("")
	us.sessions[se.ID] = se
	return se.ID, true, nil
}

// AppendExchange appends a completed user/assistant exchange in order. When
// the append brings the message count to exactly 2 the session title is
// derived from the opening user message; the count guard keeps the
// derivation from ever firing twice.
func (s *Store) AppendExchange(user, id string, userTurn, assistantTurn models.Turn) error {
	us := s.forUser(user)
	us.mu.Lock()
	defer us.mu.Unlock()
	se, ok := us.sessions[id]
	if !ok {
		return ErrNotFound
	}
	se.Messages = append(se.Messages, userTurn, assistantTurn)
	if len(se.Messages) == 2 {
		se.Title = deriveTitle(userTurn.Content)
	}
	return nil
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleRuneLimit {
		return content
	}
	return string(runes[:titleRuneLimit]) + "..."
}
