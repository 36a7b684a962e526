package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/adstudio/backend/internal/metrics"
	"github.com/adstudio/backend/internal/models"
)

const issuer = "adstudio"

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrInvalidToken indicates an access token failed verification.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrTokenExpired indicates an access token is past its expiry.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenRevoked indicates an access token belongs to a signed-out session.
	ErrTokenRevoked = errors.New("access token revoked")
)

// SessionStore persists issued refresh tokens so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

// Session represents a refresh token issued to an account.
type Session struct {
	RefreshToken string
	AccountID    string
	Email        string
	ExpiresAt    time.Time
}

// Claims are carried by access tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues, verifies, refreshes and revokes sessions.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      SessionStore
	hub        *Hub
	now        func() time.Time

	revokedMu sync.Mutex
	revoked   map[string]time.Time

	unsubscribe func()
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithHub publishes session events on h instead of a private hub.
func WithHub(h *Hub) ManagerOption {
	return func(m *Manager) {
		if h != nil {
			m.hub = h
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a Manager that signs access tokens with secret.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, store SessionStore, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if strings.TrimSpace(secret) == "" {
		panic("auth: signing secret must not be empty")
	}

	m := &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        time.Now,
		revoked:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hub == nil {
		m.hub = NewHub()
	}

	// Sign-outs from any instance reach this hub, so every instance rejects
	// the revoked access token.
	m.unsubscribe = m.hub.Subscribe(func(e Event) {
		if e.Type == EventSignedOut && e.TokenID != "" {
			m.revoke(e.TokenID, e.ExpiresAt)
		}
	})
	return m
}

// Hub returns the hub on which session events are published.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Close detaches the manager from its hub.
func (m *Manager) Close() {
	m.unsubscribe()
}

// Issue creates a new pair of access and refresh tokens for the account.
func (m *Manager) Issue(ctx context.Context, accountID, email string) (models.SessionTokens, error) {
	tokens, err := m.issue(ctx, accountID, email)
	if err != nil {
		return models.SessionTokens{}, err
	}
	m.publish(EventSignedIn, accountID, "", time.Time{})
	return tokens, nil
}

func (m *Manager) issue(ctx context.Context, accountID, email string) (models.SessionTokens, error) {
	if accountID == "" {
		return models.SessionTokens{}, errors.New("account id must be provided")
	}

	now := m.now().UTC()
	accessExpires := now.Add(m.accessTTL)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpires),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return models.SessionTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	if err := m.store.Save(ctx, Session{
		RefreshToken: refreshToken,
		AccountID:    accountID,
		Email:        email,
		ExpiresAt:    tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Verify checks an access token and returns its principal.
func (m *Manager) Verify(token string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return Principal{}, ErrInvalidToken
	}
	if m.isRevoked(claims.ID) {
		return Principal{}, ErrTokenRevoked
	}

	return Principal{
		AccountID: claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh exchanges a refresh token for a new session token pair. The old
// refresh token is consumed.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if m.now().UTC().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, refreshToken)
		return models.SessionTokens{}, ErrRefreshTokenExpired
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, err
	}

	tokens, err := m.issue(ctx, session.AccountID, session.Email)
	if err != nil {
		return models.SessionTokens{}, err
	}
	m.publish(EventRefreshed, session.AccountID, "", time.Time{})
	return tokens, nil
}

// SignOut revokes the caller's access token and, when it belongs to the same
// account, deletes refreshToken.
func (m *Manager) SignOut(ctx context.Context, p Principal, refreshToken string) error {
	if refreshToken != "" {
		session, err := m.store.Find(ctx, refreshToken)
		switch {
		case errors.Is(err, ErrSessionNotFound):
		case err != nil:
			return err
		case session.AccountID == p.AccountID:
			if err := m.store.Delete(ctx, refreshToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
				return err
			}
		}
	}

	m.publish(EventSignedOut, p.AccountID, p.TokenID, p.ExpiresAt)
	return nil
}

func (m *Manager) publish(t EventType, accountID, tokenID string, expiresAt time.Time) {
	metrics.RecordSessionEvent(string(t))
	m.hub.Publish(Event{
		Type:      t,
		AccountID: accountID,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
		At:        m.now().UTC(),
	})
}

func (m *Manager) revoke(tokenID string, expiresAt time.Time) {
	now := m.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(m.accessTTL)
	}

	m.revokedMu.Lock()
	defer m.revokedMu.Unlock()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[tokenID] = expiresAt
}

func (m *Manager) isRevoked(tokenID string) bool {
	m.revokedMu.Lock()
	defer m.revokedMu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
