package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/domain"
	"github.com/crmportal/crmportal/shared/utils"
	"github.com/stretchr/testify/require"
)

type MockAuthService struct {
	RegisterFunc           func(ctx context.Context, email domain.Email, password domain.Password) error
	LoginFunc              func(ctx context.Context, email domain.Email, password domain.Password) (domain.LoginResult, error)
	VerifyEmailFunc        func(ctx context.Context, token string, email domain.Email) error
	ResendVerificationFunc func(ctx context.Context, email domain.Email) error
	ForgotPasswordFunc     func(ctx context.Context, email domain.Email) error
	ResetPasswordFunc      func(ctx context.Context, token string, newPassword domain.Password) error
	RefreshTokenFunc       func(ctx context.Context, refreshToken string) (domain.RefreshResult, error)
	LogoutFunc             func(ctx context.Context, refreshToken string)
	CurrentUserFunc        func(ctx context.Context, id domain.UserId) (domain.UserSummary, error)
	AuthenticateFunc       func(ctx context.Context, accessToken string) (domain.UserSummary, error)
	AdminVerifyEmailFunc   func(ctx context.Context, email domain.Email) error
}

func (m *MockAuthService) Register(ctx context.Context, email domain.Email, password domain.Password) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return nil
}

func (m *MockAuthService) Login(ctx context.Context, email domain.Email, password domain.Password) (domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return domain.LoginResult{}, nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string, email domain.Email) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token, email)
	}
	return nil
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email domain.Email) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email domain.Email) error {
	if m.ForgotPasswordFunc != nil {
		return m.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token string, newPassword domain.Password) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (domain.RefreshResult, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return domain.RefreshResult{}, nil
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, refreshToken)
	}
}

func (m *MockAuthService) CurrentUser(ctx context.Context, id domain.UserId) (domain.UserSummary, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx, id)
	}
	return domain.UserSummary{}, nil
}

func (m *MockAuthService) Authenticate(ctx context.Context, accessToken string) (domain.UserSummary, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, accessToken)
	}
	return domain.UserSummary{}, nil
}

func (m *MockAuthService) AdminVerifyEmail(ctx context.Context, email domain.Email) error {
	if m.AdminVerifyEmailFunc != nil {
		return m.AdminVerifyEmailFunc(ctx, email)
	}
	return nil
}

type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func newTestHandler(auth *MockAuthService) *Handler {
	public := config.DefaultPublic()
	public.SecureCookies = true
	return New(auth, config.New(public, config.Private{}), &MockHealthChecker{})
}

func createRequest(t *testing.T, method, url string, body []byte, cookies ...*http.Cookie) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
