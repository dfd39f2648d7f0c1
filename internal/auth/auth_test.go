package auth

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"catalog_service/internal/domain"
	"catalog_service/pkg/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-with-enough-bytes"

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestProvider(t *testing.T, admin AdminCredentials) (*Provider, *TokenManager) {
	t.Helper()
	tokens, err := NewTokenManager(TokenConfig{Secret: testSecret, SessionTTL: time.Hour})
	require.NoError(t, err)
	return NewProvider(tokens, NewMemorySessionStore(), admin, testLogger()), tokens
}

func adminCredentials(t *testing.T, email, password string) AdminCredentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return AdminCredentials{Email: email, PasswordHash: string(hash)}
}

func TestNewTokenManager_RejectsShortSecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{Secret: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTokenManager_TokenTypesAreNotInterchangeable(t *testing.T) {
	tokens, err := NewTokenManager(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	custom, err := tokens.MintCustomToken("u1", true, time.Minute)
	require.NoError(t, err)
	_, err = tokens.ParseSession(custom)
	assert.ErrorIs(t, err, ErrInvalidToken)

	session, err := tokens.IssueSession(domain.Identity{UID: "u1", SessionID: "s1", ExpiresAt: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	_, err = tokens.ParseCustom(session)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := tokens.ParseCustom(custom)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, claims.Admin)
}

func TestTokenManager_ExpiredAndForeignTokens(t *testing.T) {
	tokens, err := NewTokenManager(TokenConfig{Secret: testSecret})
	require.NoError(t, err)

	expired, err := tokens.IssueSession(domain.Identity{UID: "u1", SessionID: "s1", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	_, err = tokens.ParseSession(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	other, err := NewTokenManager(TokenConfig{Secret: "another-secret-entirely"})
	require.NoError(t, err)
	foreign, err := other.MintCustomToken("u1", false, time.Minute)
	require.NoError(t, err)
	_, err = tokens.ParseCustom(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TokenType: tokenTypeCustom, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "catalog_service"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.ParseCustom(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestProvider_AnonymousSessionVerifiesUntilSignOut(t *testing.T) {
	p, _ := newTestProvider(t, AdminCredentials{})
	ctx := context.Background()

	var mu sync.Mutex
	var events []domain.AuthEvent
	unsubscribe := p.OnAuthStateChanged(func(ev domain.AuthEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsubscribe()

	session, err := p.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, session.Identity.Anonymous)
	assert.False(t, session.Identity.Admin)
	_, err = uuid.Parse(session.Identity.UID)
	assert.NoError(t, err)

	identity, err := p.Verify(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Identity.UID, identity.UID)

	require.NoError(t, p.SignOut(ctx, session.Token))
	_, err = p.Verify(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, events[0].SignedIn)
	assert.False(t, events[1].SignedIn)
	assert.Equal(t, session.Identity.SessionID, events[1].Identity.SessionID)
}

func TestProvider_UnsubscribedListenerIsNotCalled(t *testing.T) {
	p, _ := newTestProvider(t, AdminCredentials{})
	calls := 0
	unsubscribe := p.OnAuthStateChanged(func(domain.AuthEvent) { calls++ })
	unsubscribe()

	_, err := p.SignInAnonymously(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestProvider_CustomTokenCarriesAdminFlag(t *testing.T) {
	p, _ := newTestProvider(t, AdminCredentials{})
	ctx := context.Background()

	token, err := p.MintCustomToken("ops", true, time.Minute)
	require.NoError(t, err)
	session, err := p.SignInWithCustomToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", session.Identity.UID)
	assert.True(t, session.Identity.Admin)

	_, err = p.SignInWithCustomToken(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestProvider_PasswordSignIn(t *testing.T) {
	p, _ := newTestProvider(t, adminCredentials(t, "admin@tienda.com", "s3creto"))
	ctx := context.Background()

	session, err := p.SignInWithPassword(ctx, "  Admin@Tienda.com ", "s3creto")
	require.NoError(t, err)
	assert.True(t, session.Identity.Admin)

	_, err = p.SignInWithPassword(ctx, "admin@tienda.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = p.SignInWithPassword(ctx, "other@tienda.com", "s3creto")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestProvider_PasswordSignInDisabledWithoutCredentials(t *testing.T) {
	p, _ := newTestProvider(t, AdminCredentials{})
	_, err := p.SignInWithPassword(context.Background(), "admin@tienda.com", "x")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestProvider_VerifyRejectsEmptyToken(t *testing.T) {
	p, _ := newTestProvider(t, AdminCredentials{})
	_, err := p.Verify(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestPasswordHasher(t *testing.T) {
	h := &PasswordHasher{cost: bcrypt.MinCost}
	hash, err := h.Hash("clave")
	require.NoError(t, err)
	assert.True(t, h.Verify("clave", hash))
	assert.False(t, h.Verify("otra", hash))
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Identity{UID: "u", SessionID: "s"}, time.Minute))
	_, err := store.Load(ctx, "s")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Load(ctx, "s")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemorySessionStore_SweepsExpiredAtMostOncePerInterval(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Identity{UID: "a", SessionID: "a"}, 10*time.Second))

	now = now.Add(20 * time.Second)
	require.NoError(t, store.Save(ctx, domain.Identity{UID: "b", SessionID: "b"}, 10*time.Second))
	assert.Len(t, store.sessions, 2)

	now = now.Add(sessionSweepInterval)
	require.NoError(t, store.Save(ctx, domain.Identity{UID: "c", SessionID: "c"}, time.Hour))
	assert.Len(t, store.sessions, 1)
	_, err := store.Load(ctx, "c")
	assert.NoError(t, err)
}

func TestRedisSessionStore(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/15"
	}
	ctx := context.Background()
	client, err := db.ConnectRedis(ctx, redisURL)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", redisURL, err)
	}
	defer client.Close()

	store := NewRedisSessionStore(client, "test:session:"+uuid.NewString()+":")
	identity := domain.Identity{UID: "u1", SessionID: "s1", Admin: true, Email: "a@b.c"}
	require.NoError(t, store.Save(ctx, identity, time.Minute))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, identity.UID, loaded.UID)
	assert.True(t, loaded.Admin)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
