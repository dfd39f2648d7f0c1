package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"catalog_service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// Session is an opened session and the bearer token that names it.
type Session struct {
	Token    string
	Identity domain.Identity
}

type Provider struct {
	tokens   *TokenManager
	sessions SessionStore
	hasher   *PasswordHasher
	admin    AdminCredentials
	log      *logrus.Logger

	mu        sync.RWMutex
	listeners map[int]func(domain.AuthEvent)
	nextID    int
}

func NewProvider(tokens *TokenManager, sessions SessionStore, admin AdminCredentials, logger *logrus.Logger) *Provider {
	return &Provider{
		tokens:    tokens,
		sessions:  sessions,
		hasher:    NewPasswordHasher(),
		admin:     admin,
		log:       logger,
		listeners: make(map[int]func(domain.AuthEvent)),
	}
}

func (p *Provider) SignInAnonymously(ctx context.Context) (*Session, error) {
	return p.open(ctx, domain.Identity{UID: uuid.NewString(), Anonymous: true})
}

func (p *Provider) SignInWithCustomToken(ctx context.Context, token string) (*Session, error) {
	claims, err := p.tokens.ParseCustom(token)
	if err != nil {
		p.log.Warnf("Auth: Custom token rejected: %v", err)
		return nil, err
	}
	return p.open(ctx, domain.Identity{UID: claims.Subject, Admin: claims.Admin})
}

// SignInWithPassword checks the configured admin credentials. The email match
// ignores case and surrounding spaces.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if p.admin.Email == "" || p.admin.PasswordHash == "" {
		p.log.Warn("Auth: Password sign-in attempted but no admin credentials are configured")
		return nil, fmt.Errorf("%w: password sign-in is disabled", domain.ErrUnauthenticated)
	}
	if !strings.EqualFold(email, strings.TrimSpace(p.admin.Email)) || !p.hasher.Verify(password, p.admin.PasswordHash) {
		p.log.Warnf("Auth: Invalid credentials for '%s'", email)
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)
	}
	return p.open(ctx, domain.Identity{UID: "admin:" + strings.ToLower(email), Admin: true, Email: email})
}

func (p *Provider) open(ctx context.Context, identity domain.Identity) (*Session, error) {
	ttl := p.tokens.SessionTTL()
	identity.SessionID = uuid.NewString()
	identity.ExpiresAt = time.Now().Add(ttl).UTC().Truncate(time.Second)

	token, err := p.tokens.IssueSession(identity)
	if err != nil {
		p.log.Errorf("Auth: Failed to sign session token for %s: %v", identity.UID, err)
		return nil, fmt.Errorf("could not sign session token: %w", err)
	}
	if err := p.sessions.Save(ctx, identity, ttl); err != nil {
		p.log.Errorf("Auth: Failed to store session for %s: %v", identity.UID, err)
		return nil, err
	}

	p.log.Infof("Auth: Signed in uid=%s anonymous=%t admin=%t", identity.UID, identity.Anonymous, identity.Admin)
	p.emit(domain.AuthEvent{Identity: &identity, SignedIn: true})
	return &Session{Token: token, Identity: identity}, nil
}

// Verify returns the identity behind a session token that has not been
// revoked or expired.
func (p *Provider) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing session token", domain.ErrUnauthenticated)
	}
	claims, err := p.tokens.ParseSession(token)
	if err != nil {
		return nil, err
	}
	identity, err := p.sessions.Load(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: session has been revoked", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	if identity.UID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return identity, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	identity, err := p.Verify(ctx, token)
	if err != nil {
		return err
	}
	if err := p.sessions.Delete(ctx, identity.SessionID); err != nil {
		p.log.Errorf("Auth: Failed to revoke session %s: %v", identity.SessionID, err)
		return err
	}
	p.log.Infof("Auth: Signed out uid=%s", identity.UID)
	p.emit(domain.AuthEvent{Identity: identity, SignedIn: false})
	return nil
}

// OnAuthStateChanged registers listener and returns a function removing it.
// Listeners run on the caller's goroutine and must not block.
func (p *Provider) OnAuthStateChanged(listener func(domain.AuthEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) MintCustomToken(uid string, admin bool, ttl time.Duration) (string, error) {
	return p.tokens.MintCustomToken(uid, admin, ttl)
}

func (p *Provider) emit(event domain.AuthEvent) {
	p.mu.RLock()
	listeners := make([]func(domain.AuthEvent), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}
