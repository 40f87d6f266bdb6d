// ABOUTME: Signed login sessions for the coven-chat CLI
// ABOUTME: Issues HS256 JWTs naming the logged-in user and keeps the current one in a 0600 file

package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session errors
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session expired")
	ErrNoSession    = errors.New("not logged in")
	ErrNoSecret     = errors.New("session secret is not configured")
)

const issuer = "coven-chat"

// Claims are the JWT claims carried by a session token.
// Subject is the username.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the account the session belongs to.
func (c *Claims) Username() string {
	return c.Subject
}

// Manager issues, verifies, and persists session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	path   string
	now    func() time.Time
}

// NewManager creates a manager signing with secret and storing the current
// token at path.
func NewManager(secret string, ttl time.Duration, path string) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		path:   path,
		now:    time.Now,
	}, nil
}

// Path returns where the current session token is stored.
func (m *Manager) Path() string {
	return m.path
}

// Issue creates a signed token for username valid for the manager's TTL.
func (m *Manager) Issue(username string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("%w: empty username", ErrInvalidToken)
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify validates tokenString and returns its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Save stores tokenString as the current session, readable only by the owner.
func (m *Manager) Save(tokenString string) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(tokenString+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Login issues and saves a session for username in one step.
func (m *Manager) Login(username string) (*Claims, error) {
	tok, err := m.Issue(username)
	if err != nil {
		return nil, err
	}
	if err := m.Save(tok); err != nil {
		return nil, err
	}
	return m.Verify(tok)
}

// Current returns the claims of the saved session.
// It returns ErrNoSession when nobody is logged in.
func (m *Manager) Current() (*Claims, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return nil, ErrNoSession
	}
	return m.Verify(tok)
}

// Clear removes the saved session. Clearing when logged out is not an error.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
