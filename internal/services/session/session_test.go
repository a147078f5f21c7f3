package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
	"github.com/magabrotheeeer/gig-messenger/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	sessionSecret = "session-secret"
	resetSecret   = "reset-secret"
)

type fixture struct {
	svc     *Service
	store   *memory.Storage
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	m := metrics.New(prometheus.NewRegistry())
	maker := jwt.NewJWTMaker(sessionSecret, models.TokenKindSession, 0, "test")
	return fixture{
		svc:     New(maker, store.Tokens(models.TokenKindSession), store, m),
		store:   store,
		metrics: m,
	}
}

func createUser(t *testing.T, store *memory.Storage, name string) string {
	t.Helper()
	uid, err := store.CreateUser(context.Background(), &models.User{
		Username: name,
		Email:    name + "@example.com",
		UserType: models.UserTypeVenue,
	})
	require.NoError(t, err)
	return uid
}

func TestService_IssueValidateRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := createUser(t, f.store, "alice")

	token, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)

	user, err := f.svc.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uid, user.UUID)

	require.NoError(t, f.svc.Revoke(ctx, uid, token))

	_, err = f.svc.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokensIssued.WithLabelValues("session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TokensRevoked.WithLabelValues("session")))
}

func TestService_MultipleSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := createUser(t, f.store, "alice")

	first, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, uid)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, f.svc.Revoke(ctx, uid, first))

	_, err = f.svc.Validate(ctx, first)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	user, err := f.svc.Validate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uid, user.UUID)
}

func TestService_RevokeAllIsolatesUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := createUser(t, f.store, "alice")
	bob := createUser(t, f.store, "bob")

	var aliceTokens []string
	for i := 0; i < 3; i++ {
		tok, err := f.svc.Issue(ctx, alice)
		require.NoError(t, err)
		aliceTokens = append(aliceTokens, tok)
	}
	bobToken, err := f.svc.Issue(ctx, bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.RevokeAll(ctx, alice))

	for _, tok := range aliceTokens {
		_, err := f.svc.Validate(ctx, tok)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	}
	user, err := f.svc.Validate(ctx, bobToken)
	require.NoError(t, err)
	assert.Equal(t, bob, user.UUID)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.TokensRevoked.WithLabelValues("session")))
}

func TestService_ValidateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := createUser(t, f.store, "alice")

	resetMaker := jwt.NewJWTMaker(resetSecret, models.TokenKindReset, time.Hour, "test")
	resetToken, err := resetMaker.GenerateToken(uid)
	require.NoError(t, err)
	// токен восстановления, даже попавший в набор сессий, не проходит проверку подписи
	require.NoError(t, f.store.Tokens(models.TokenKindSession).Add(ctx, uid, resetToken, time.Now()))

	ghostMaker := jwt.NewJWTMaker(sessionSecret, models.TokenKindSession, 0, "test")
	ghostToken, err := ghostMaker.GenerateToken("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	require.NoError(t, f.store.Tokens(models.TokenKindSession).Add(ctx, "00000000-0000-0000-0000-000000000000", ghostToken, time.Now()))

	notStored, err := ghostMaker.GenerateToken(uid)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: models.ErrInvalidSignature},
		{name: "garbage", token: "not.a.token", wantErr: models.ErrInvalidSignature},
		{name: "reset domain token", token: resetToken, wantErr: models.ErrInvalidSignature},
		{name: "signed but never issued", token: notStored, wantErr: models.ErrUnauthenticated},
		{name: "unknown user", token: ghostToken, wantErr: models.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Validate(ctx, tt.token)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type failingSet struct {
	err error
}

func (f failingSet) Add(context.Context, string, string, time.Time) error { return f.err }
func (f failingSet) Contains(context.Context, string, string) (bool, error) {
	return false, f.err
}
func (f failingSet) Remove(context.Context, string, string) error { return f.err }
func (f failingSet) Clear(context.Context, string) error { return f.err }
func (f failingSet) Count(context.Context, string) (int, error) { return 0, f.err }

type failingUsers struct{}

func (failingUsers) GetUser(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestService_PersistenceErrors(t *testing.T) {
	ctx := context.Background()
	maker := jwt.NewJWTMaker(sessionSecret, models.TokenKindSession, 0, "test")
	svc := New(maker, failingSet{err: errors.New("store down")}, memory.New(), nil)

	_, err := svc.Issue(ctx, "uid")
	assert.ErrorIs(t, err, models.ErrPersistence)

	token, err := maker.GenerateToken("uid")
	require.NoError(t, err)
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrPersistence)

	assert.ErrorIs(t, svc.Revoke(ctx, "uid", token), models.ErrPersistence)
	assert.ErrorIs(t, svc.RevokeAll(ctx, "uid"), models.ErrPersistence)

	store := memory.New()
	svc = New(maker, store.Tokens(models.TokenKindSession), failingUsers{}, nil)
	token, err = svc.Issue(ctx, "uid")
	require.NoError(t, err)
	_, err = svc.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestService_ConcurrentRevokesDoNotResurrectTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := createUser(t, f.store, "alice")

	tokens := make([]string, 10)
	for i := range tokens {
		tok, err := f.svc.Issue(ctx, uid)
		require.NoError(t, err)
		tokens[i] = tok
	}

	var wg sync.WaitGroup
	for _, tok := range tokens[:9] {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			assert.NoError(t, f.svc.Revoke(ctx, uid, tok))
		}(tok)
	}
	wg.Wait()

	for _, tok := range tokens[:9] {
		_, err := f.svc.Validate(ctx, tok)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	}
	_, err := f.svc.Validate(ctx, tokens[9])
	assert.NoError(t, err)
}
