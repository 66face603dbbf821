package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/david/opportunity-finder/internal/catalog"
	"github.com/david/opportunity-finder/internal/query"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

const tokenIssuer = "opportunity-finder"

// Session is one browsing session. It pins the catalog snapshot it was
// created with, so a new ingest cycle is only seen by new sessions.
type Session struct {
	ID        uuid.UUID
	State     query.State
	Snapshot  *catalog.Snapshot
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager keeps query sessions in memory and issues signed tokens
// that name them.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessionManager(secret []byte, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Create starts a session on snap with the default query state.
func (m *SessionManager) Create(snap *catalog.Snapshot) (string, Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New(),
		State:     query.NewState(),
		Snapshot:  snap,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	token, err := m.sign(s)
	if err != nil {
		return "", Session{}, err
	}

	m.mu.Lock()
	m.sweepLocked(now)
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return token, *s, nil
}

// Get returns a copy of a live session.
func (m *SessionManager) Get(id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	return *s, nil
}

// Update applies fn to the session's query state and returns the result.
func (m *SessionManager) Update(id uuid.UUID, fn func(query.State) query.State) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	s.State = fn(s.State)
	return *s, nil
}

// Delete ends a session.
func (m *SessionManager) Delete(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep drops expired sessions and reports how many are left.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	return len(m.sessions)
}

func (m *SessionManager) liveLocked(id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *SessionManager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}

func (m *SessionManager) sign(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   s.ID.String(),
		IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns the session id it names.
func (m *SessionManager) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
