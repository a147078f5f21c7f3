package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/gig-messenger/internal/lib/jwt"
	"github.com/magabrotheeeer/gig-messenger/internal/lib/password"
	"github.com/magabrotheeeer/gig-messenger/internal/models"
	"github.com/magabrotheeeer/gig-messenger/internal/services/auth"
	"github.com/magabrotheeeer/gig-messenger/internal/services/reset"
	"github.com/magabrotheeeer/gig-messenger/internal/services/session"
	"github.com/magabrotheeeer/gig-messenger/internal/storage/memory"
)

// Мок для Notifier
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Send(ctx context.Context, mail models.Mail) error {
	args := m.Called(ctx, mail)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	svc      *auth.Service
	store    *memory.Storage
	sessions *session.Service
	resets   *reset.Service
	notifier *NotifierMock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	hasher := password.NewHasher(password.DefaultCost)
	sessions := session.New(
		jwt.NewJWTMaker("session-secret", models.TokenKindSession, 0, "test"),
		store.Tokens(models.TokenKindSession), store, nil)
	resets := reset.New(
		jwt.NewJWTMaker("reset-secret", models.TokenKindReset, time.Hour, "test"),
		store.Tokens(models.TokenKindReset), store, hasher, nil)
	notifier := new(NotifierMock)

	svc, err := auth.NewService(store, hasher, sessions, resets, notifier,
		auth.RecoveryConfig{LinkBaseURL: "http://localhost:3000/reset-password", Subject: "Password recovery"},
		newNoopLogger(), nil)
	require.NoError(t, err)
	return fixture{svc: svc, store: store, sessions: sessions, resets: resets, notifier: notifier}
}

var alice = auth.SignupInput{
	Username: "alice",
	Email:    "a@x.com",
	Password: "s3cret!",
	UserType: models.UserTypeArtist,
}

func TestService_SignupThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, signupToken, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, signupToken)
	assert.NotEmpty(t, user.UUID)
	assert.NotEqual(t, alice.Password, user.PasswordHash)
	assert.False(t, user.PasswordChanged())

	loggedIn, loginToken, err := f.svc.Login(ctx, "a@x.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, signupToken, loginToken)
	assert.Equal(t, user.UUID, loggedIn.UUID)

	for _, tok := range []string{signupToken, loginToken} {
		u, err := f.sessions.Validate(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, user.UUID, u.UUID)
	}

	byName, _, err := f.svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, user.UUID, byName.UUID)
}

func TestService_SignupValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *auth.SignupInput)
		wantField string
	}{
		{name: "long username", mutate: func(in *auth.SignupInput) { in.Username = strings.Repeat("a", 21) }, wantField: "Username"},
		{name: "bad email", mutate: func(in *auth.SignupInput) { in.Email = "not-an-email" }, wantField: "Email"},
		{name: "bad user type", mutate: func(in *auth.SignupInput) { in.UserType = "promoter" }, wantField: "UserType"},
		{name: "short password", mutate: func(in *auth.SignupInput) { in.Password = "abc" }, wantField: "Password"},
		{name: "password substring", mutate: func(in *auth.SignupInput) { in.Password = "myPASSWORD9" }, wantField: "Password"},
		{name: "multibyte short password", mutate: func(in *auth.SignupInput) { in.Password = "ééé" }, wantField: "Password"},
		{name: "password over bcrypt limit", mutate: func(in *auth.SignupInput) { in.Password = strings.Repeat("x", 73) }, wantField: "Password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := alice
			tt.mutate(&in)

			_, _, err := f.svc.Signup(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrValidation)

			var fe *models.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestService_SignupDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)

	dup := alice
	dup.Email = "A@X.COM "
	dup.Username = "alice2"
	_, _, err = f.svc.Signup(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)
}

func TestService_LoginUniformFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)

	_, _, wrongPass := f.svc.Login(ctx, "a@x.com", "wrong-one")
	_, _, unknown := f.svc.Login(ctx, "nobody@x.com", "s3cret!")

	assert.ErrorIs(t, wrongPass, models.ErrInvalidCredentials)
	assert.ErrorIs(t, unknown, models.ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestService_LogoutAndLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, first, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)
	_, second, err := f.svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, user.UUID, first))
	_, err = f.sessions.Validate(ctx, first)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = f.sessions.Validate(ctx, second)
	require.NoError(t, err)

	_, third, err := f.svc.Login(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	require.NoError(t, f.svc.LogoutAll(ctx, user.UUID))
	for _, tok := range []string{second, third} {
		_, err = f.sessions.Validate(ctx, tok)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	}
}

func TestService_ForgotAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, sessionToken, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)

	var sent models.Mail
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m models.Mail) bool {
		sent = m
		return m.To == "a@x.com" && m.Subject == "Password recovery"
	})).Return(nil).Once()

	require.NoError(t, f.svc.Forgot(ctx, " A@x.com"))
	f.notifier.AssertExpectations(t)

	token := extractToken(t, sent.HTML)
	user, err := f.resets.Validate(ctx, token)
	require.NoError(t, err)

	_, err = f.sessions.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrInvalidSignature, "reset token must not open a session")
	_, err = f.resets.Validate(ctx, sessionToken)
	assert.ErrorIs(t, err, models.ErrInvalidSignature, "session token must not reset a password")

	updated, err := f.svc.ResetPassword(ctx, user, token, "n3w-s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.UUID, updated.UUID)

	_, err = f.resets.Validate(ctx, token)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, _, err = f.svc.Login(ctx, "alice", "n3w-s3cret")
	require.NoError(t, err)
	_, _, err = f.svc.Login(ctx, "alice", "s3cret!")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestService_ForgotUnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Forgot(context.Background(), "ghost@x.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestService_ForgotNotifierFailureDiscardsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, _, err := f.svc.Signup(ctx, alice)
	require.NoError(t, err)

	var sent models.Mail
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(m models.Mail) bool {
		sent = m
		return true
	})).Return(errors.New("smtp down")).Once()

	err = f.svc.Forgot(ctx, "a@x.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotify)

	n, err := f.store.Tokens(models.TokenKindReset).Count(ctx, user.UUID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.resets.Validate(ctx, extractToken(t, sent.HTML))
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestService_Profile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := alice
	in.Name = "  Alice Band  "
	user, _, err := f.svc.Signup(ctx, in)
	require.NoError(t, err)

	got, err := f.svc.Profile(ctx, user.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Band", got.Name)

	_, err = f.svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func extractToken(t *testing.T, html string) string {
	t.Helper()
	start := strings.Index(html, `href="`)
	require.GreaterOrEqual(t, start, 0)
	rest := html[start+len(`href="`):]
	end := strings.Index(rest, `"`)
	require.Greater(t, end, 0)

	link, err := url.Parse(strings.ReplaceAll(rest[:end], "&amp;", "&"))
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", link.Path)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}
