package service

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crmportal/crmportal/backend/internal/storage/memory"
	"github.com/crmportal/crmportal/shared/crypto"
	internal_errors "github.com/crmportal/crmportal/shared/errors"
	"github.com/crmportal/crmportal/shared/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type scenario struct {
	auth  *Auth
	users *memory.Users
	mail  *MockEmail
	clock *time.Time
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	now := testNow
	clock := func() time.Time { return now }

	users := memory.NewUsers()
	mail := &MockEmail{}
	codec := jwt.New("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour).WithClock(clock)
	auth := NewAuth(users, memory.NewRevocations().WithClock(clock), mail, codec, crypto.NewBcrypt(bcrypt.MinCost), testConfig()).
		WithClock(clock)
	return &scenario{auth: auth, users: users, mail: mail, clock: &now}
}

func (s *scenario) advance(d time.Duration) {
	*s.clock = s.clock.Add(d)
}

func (s *scenario) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, s.mail.Sent)
	token := tokenFromBody(s.mail.Sent[len(s.mail.Sent)-1].Body)
	require.NotEmpty(t, token)
	return token
}

func TestScenarioRegisterVerifyLogin(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	require.NoError(t, s.auth.Register(ctx, "a@x.io", "Passw0rd!"))

	_, err := s.auth.Login(ctx, "a@x.io", "Passw0rd!")
	requireCode(t, err, internal_errors.CodeAccountNotVerified, http.StatusUnauthorized)

	token := s.lastToken(t)
	require.NoError(t, s.auth.VerifyEmail(ctx, token, "a@x.io"))

	// single use
	err = s.auth.VerifyEmail(ctx, token, "a@x.io")
	requireCode(t, err, internal_errors.CodeInvalidToken, http.StatusBadRequest)

	res, err := s.auth.Login(ctx, "a@x.io", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", res.User.Email)

	me, err := s.auth.Authenticate(ctx, res.Tokens.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, res.User, me)

	_, err = s.auth.Authenticate(ctx, res.Tokens.Refresh.Value)
	requireCode(t, err, internal_errors.CodeUnauthorized, http.StatusUnauthorized)

	err = s.auth.Register(ctx, "a@x.io", "Passw0rd!")
	requireCode(t, err, internal_errors.CodeEmailExists, http.StatusBadRequest)
}

func TestScenarioVerificationExpiry(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	require.NoError(t, s.auth.Register(ctx, "late@x.io", "Passw0rd!"))
	token := s.lastToken(t)

	s.advance(25 * time.Hour)

	err := s.auth.VerifyEmail(ctx, token, "")
	requireCode(t, err, internal_errors.CodeInvalidToken, http.StatusBadRequest)

	// a resend invalidates the old link and the new one works
	require.NoError(t, s.auth.ResendVerification(ctx, "late@x.io"))
	fresh := s.lastToken(t)
	assert.NotEqual(t, token, fresh)
	require.NoError(t, s.auth.VerifyEmail(ctx, fresh, ""))

	err = s.auth.ResendVerification(ctx, "late@x.io")
	requireCode(t, err, internal_errors.CodeAlreadyVerified, http.StatusBadRequest)
}

func TestScenarioPasswordReset(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	require.NoError(t, s.auth.Register(ctx, "r@x.io", "Passw0rd!"))
	require.NoError(t, s.auth.AdminVerifyEmail(ctx, "r@x.io"))

	sentBefore := len(s.mail.Sent)
	require.NoError(t, s.auth.ForgotPassword(ctx, "nobody@x.io"))
	assert.Len(t, s.mail.Sent, sentBefore)

	require.NoError(t, s.auth.ForgotPassword(ctx, "r@x.io"))
	token := s.lastToken(t)

	require.NoError(t, s.auth.ResetPassword(ctx, token, "N3w!passw0rd"))

	err := s.auth.ResetPassword(ctx, token, "An0ther!pass")
	requireCode(t, err, internal_errors.CodeInvalidOrExpiredToken, http.StatusBadRequest)

	_, err = s.auth.Login(ctx, "r@x.io", "Passw0rd!")
	requireCode(t, err, internal_errors.CodeInvalidCredentials, http.StatusUnauthorized)
	_, err = s.auth.Login(ctx, "r@x.io", "N3w!passw0rd")
	require.NoError(t, err)
}

func TestScenarioResetExpiry(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	require.NoError(t, s.auth.Register(ctx, "r@x.io", "Passw0rd!"))
	require.NoError(t, s.auth.ForgotPassword(ctx, "r@x.io"))
	token := s.lastToken(t)

	s.advance(61 * time.Minute)

	err := s.auth.ResetPassword(ctx, token, "N3w!passw0rd")
	requireCode(t, err, internal_errors.CodeInvalidOrExpiredToken, http.StatusBadRequest)
}

func TestScenarioRefreshRotation(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	require.NoError(t, s.auth.Register(ctx, "a@x.io", "Passw0rd!"))
	require.NoError(t, s.auth.AdminVerifyEmail(ctx, "a@x.io"))
	login, err := s.auth.Login(ctx, "a@x.io", "Passw0rd!")
	require.NoError(t, err)

	_, err = s.auth.RefreshToken(ctx, login.Tokens.Access.Value)
	requireCode(t, err, internal_errors.CodeInvalidRefreshToken, http.StatusUnauthorized)

	rotated, err := s.auth.RefreshToken(ctx, login.Tokens.Refresh.Value)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.Refresh.Value)

	// the old token is spent
	_, err = s.auth.RefreshToken(ctx, login.Tokens.Refresh.Value)
	requireCode(t, err, internal_errors.CodeInvalidRefreshToken, http.StatusUnauthorized)

	// logout spends the rotated one
	s.auth.Logout(ctx, rotated.Refresh.Value)
	_, err = s.auth.RefreshToken(ctx, rotated.Refresh.Value)
	requireCode(t, err, internal_errors.CodeInvalidRefreshToken, http.StatusUnauthorized)

	s.advance(16 * time.Minute)
	_, err = s.auth.Authenticate(ctx, login.Tokens.Access.Value)
	requireCode(t, err, internal_errors.CodeUnauthorized, http.StatusUnauthorized)
}

func TestScenarioLogoutWithoutRotation(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)
	s.auth.cfg.RotateRefreshTokens = false

	require.NoError(t, s.auth.Register(ctx, "a@x.io", "Passw0rd!"))
	require.NoError(t, s.auth.AdminVerifyEmail(ctx, "a@x.io"))
	login, err := s.auth.Login(ctx, "a@x.io", "Passw0rd!")
	require.NoError(t, err)

	// reusable while rotation is off
	for i := 0; i < 2; i++ {
		res, err := s.auth.RefreshToken(ctx, login.Tokens.Refresh.Value)
		require.NoError(t, err)
		assert.NotEmpty(t, res.Access.Value)
		assert.Empty(t, res.Refresh.Value)
	}

	s.auth.Logout(ctx, login.Tokens.Refresh.Value)
	_, err = s.auth.RefreshToken(ctx, login.Tokens.Refresh.Value)
	requireCode(t, err, internal_errors.CodeInvalidRefreshToken, http.StatusUnauthorized)
}

func TestScenarioConcurrentRegister(t *testing.T) {
	ctx := context.Background()
	s := newScenario(t)

	var ok, exists atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.auth.Register(ctx, "race@x.io", "Passw0rd!")
			if err == nil {
				ok.Add(1)
				return
			}
			if e, isCoded := err.(*internal_errors.ErrorWithStatusCode); isCoded && e.Code == internal_errors.CodeEmailExists {
				exists.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), exists.Load())
}
