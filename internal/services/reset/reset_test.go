package reset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/password"
	"github.com/magabrotheeeer/gig-messenger/internal/metrics"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
	"github.com/magabrotheeeer/gig-messenger/internal/storage/memory"
)

const (
	sessionSecret = "session-secret"
	resetSecret   = "reset-secret"
)

type fixture struct {
	svc     *Service
	store   *memory.Storage
	hasher  *password.Hasher
	metrics *metrics.Metrics
	uid     string
}

func newFixture(t *testing.T, ttl time.Duration) fixture {
	t.Helper()
	store := memory.New()
	hasher := password.NewHasher(password.DefaultCost)

	user := &models.User{Username: "alice", Email: "a@x.com", UserType: models.UserTypeArtist}
	user.SetPassword("s3cret!")
	require.NoError(t, user.HashPassword(hasher))
	uid, err := store.CreateUser(context.Background(), user)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	maker := jwt.NewJWTMaker(resetSecret, models.TokenKindReset, ttl, "test")
	return fixture{
		svc:     New(maker, store.Tokens(models.TokenKindReset), store, hasher, m),
		store:   store,
		hasher:  hasher,
		metrics: m,
		uid:     uid,
	}
}

func TestService_IssueValidate(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	rt, err := f.svc.Issue(ctx, f.uid)
	require.NoError(t, err)
	assert.NotEmpty(t, rt.Token)
	assert.False(t, rt.IssuedAt.IsZero())

	user, err := f.svc.Validate(ctx, rt.Token)
	require.NoError(t, err)
	assert.Equal(t, f.uid, user.UUID)
}

func TestService_ConsumeIsSingleUse(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	first, err := f.svc.Issue(ctx, f.uid)
	require.NoError(t, err)
	second, err := f.svc.Issue(ctx, f.uid)
	require.NoError(t, err)

	user, err := f.svc.Validate(ctx, first.Token)
	require.NoError(t, err)
	require.NoError(t, f.svc.Consume(ctx, user, first.Token, "n3w-s3cret"))

	_, err = f.svc.Validate(ctx, first.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = f.svc.Validate(ctx, second.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "every reset token is cleared by a password change")

	stored, err := f.store.GetUser(ctx, f.uid)
	require.NoError(t, err)
	assert.True(t, f.hasher.Verify("n3w-s3cret", stored.PasswordHash))
	assert.False(t, f.hasher.Verify("s3cret!", stored.PasswordHash))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resets.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.TokensRevoked.WithLabelValues(string(models.TokenKindReset))),
		"both outstanding reset tokens are counted as revoked")
}

func TestService_ConsumePolicyViolation(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	rt, err := f.svc.Issue(ctx, f.uid)
	require.NoError(t, err)
	user, err := f.svc.Validate(ctx, rt.Token)
	require.NoError(t, err)
	oldHash := user.PasswordHash

	for _, bad := range []string{"short", "myPassWord1"} {
		err = f.svc.Consume(ctx, user, rt.Token, bad)
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrValidation)
	}

	// токен остаётся действительным, пароль не изменился
	_, err = f.svc.Validate(ctx, rt.Token)
	require.NoError(t, err)
	stored, err := f.store.GetUser(ctx, f.uid)
	require.NoError(t, err)
	assert.Equal(t, oldHash, stored.PasswordHash)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Resets.WithLabelValues(metrics.ResultFailure)))
}

func TestService_ConsumeRequiresMembership(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	rt, err := f.svc.Issue(ctx, f.uid)
	require.NoError(t, err)
	user, err := f.svc.Validate(ctx, rt.Token)
	require.NoError(t, err)

	require.NoError(t, f.svc.Discard(ctx, f.uid, rt.Token))

	err = f.svc.Consume(ctx, user, rt.Token, "n3w-s3cret")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestService_ValidateRejections(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	sessionMaker := jwt.NewJWTMaker(sessionSecret, models.TokenKindSession, 0, "test")
	sessionToken, err := sessionMaker.GenerateToken(f.uid)
	require.NoError(t, err)
	require.NoError(t, f.store.Tokens(models.TokenKindReset).Add(ctx, f.uid, sessionToken, time.Now()))

	expiredMaker := jwt.NewJWTMaker(resetSecret, models.TokenKindReset, -time.Minute, "test")
	expired, err := expiredMaker.GenerateToken(f.uid)
	require.NoError(t, err)
	require.NoError(t, f.store.Tokens(models.TokenKindReset).Add(ctx, f.uid, expired, time.Now()))

	liveMaker := jwt.NewJWTMaker(resetSecret, models.TokenKindReset, time.Hour, "test")
	unregistered, err := liveMaker.GenerateToken(f.uid)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "session domain token", token: sessionToken, wantErr: models.ErrInvalidSignature},
		{name: "expired", token: expired, wantErr: models.ErrInvalidSignature},
		{name: "not registered", token: unregistered, wantErr: models.ErrUnauthenticated},
		{name: "garbage", token: "abc", wantErr: models.ErrInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Validate(ctx, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type failingUsers struct {
	*memory.Storage
}

func (failingUsers) UpdatePassword(context.Context, string, string) error {
	return errors.New("write conflict")
}

func TestService_ConsumeClearsTokensBeforeWrite(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	svc := New(jwt.NewJWTMaker(resetSecret, models.TokenKindReset, time.Hour, "test"),
		f.store.Tokens(models.TokenKindReset), failingUsers{f.store}, f.hasher, nil)

	rt, err := svc.Issue(ctx, f.uid)
	require.NoError(t, err)
	user, err := svc.Validate(ctx, rt.Token)
	require.NoError(t, err)

	err = svc.Consume(ctx, user, rt.Token, "n3w-s3cret")
	assert.ErrorIs(t, err, models.ErrPersistence)

	_, err = svc.Validate(ctx, rt.Token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated, "a failed write must not leave a replayable link")
}
