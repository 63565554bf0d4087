// Package auth handles the static user list and bearer-token sessions.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"git.uuxo.net/uuxo/fileshare-server/internal/metrics"
)

var log = logrus.New()

// SetLogger replaces the package-level logger.
func SetLogger(l *logrus.Logger) { log = l }

// DefaultExpiry is how long a session stays valid after issuance.
const DefaultExpiry = 24 * time.Hour

var (
	// ErrAuthFailure is returned on bad credentials. Unknown user and wrong
	// password are deliberately indistinguishable.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrTokenInvalid is returned for missing, unknown, or expired tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// User is one entry of the static credential list.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadUsers reads the static credential list from a JSON file.
func LoadUsers(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file: %w", err)
	}
	log.Infof("Loaded %d users from %s", len(users), path)
	return users, nil
}

// session is the record behind one live token.
type session struct {
	ownerID   string
	createdAt time.Time
}

// SessionStore owns the token to session mapping. It is safe for
// concurrent use; mutating access is serialized by a single mutex.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
	users    []User
	expiry   time.Duration
	now      func() time.Time
}

// NewSessionStore creates a session store over the given credential list.
// A non-positive expiry falls back to DefaultExpiry.
func NewSessionStore(users []User, expiry time.Duration) *SessionStore {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &SessionStore{
		sessions: make(map[string]session),
		users:    users,
		expiry:   expiry,
		now:      time.Now,
	}
}

// Authenticate checks the credentials against the user list and mints a
// fresh token on success. Expired sessions are swept as a side effect, so
// the map cannot grow without bound even if Resolve is never called on
// stale tokens.
func (s *SessionStore) Authenticate(username, password string) (string, error) {
	var owner string
	for _, u := range s.users {
		if u.Username == username && u.Password == password {
			owner = u.ID
			break
		}
	}
	if owner == "" {
		metrics.AuthFailuresTotal.Inc()
		log.Warnf("Authentication failed for username %q", username)
		return "", ErrAuthFailure
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	token := s.mintTokenLocked()
	s.sessions[token] = session{ownerID: owner, createdAt: s.now()}

	metrics.AuthSuccessTotal.Inc()
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	log.Infof("Session created for user %s", owner)
	return token, nil
}

// Resolve returns the owner bound to a token. An expired entry is removed
// during the check and reported as invalid.
func (s *SessionStore) Resolve(token string) (string, error) {
	if token == "" {
		return "", ErrTokenInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", ErrTokenInvalid
	}
	if s.now().Sub(sess.createdAt) >= s.expiry {
		delete(s.sessions, token)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		log.Debugf("Expired session removed for user %s", sess.ownerID)
		return "", ErrTokenInvalid
	}
	return sess.ownerID, nil
}

// Revoke removes a token. Revoking an unknown token is a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; ok {
		delete(s.sessions, token)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		log.Debugf("Session revoked")
	}
}

// Count returns the number of live sessions, sweeping expired ones first.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

// sweepLocked removes all expired sessions. Caller must hold s.mu.
func (s *SessionStore) sweepLocked() {
	now := s.now()
	for token, sess := range s.sessions {
		if now.Sub(sess.createdAt) >= s.expiry {
			delete(s.sessions, token)
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

// mintTokenLocked generates a random token not colliding with any live
// token. Caller must hold s.mu.
func (s *SessionStore) mintTokenLocked() string {
	for {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand never fails on supported platforms; if it does
			// there is nothing sensible to fall back to.
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		token := hex.EncodeToString(buf)
		if _, exists := s.sessions[token]; !exists {
			return token
		}
	}
}

// TokenFromRequest extracts the bearer token from the Authorization header.
func TokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
