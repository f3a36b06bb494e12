package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/domain"
	"github.com/crmportal/crmportal/shared/jwt"
)

// --- Mocks ---

type MockAuthStorage struct {
	CreateUserFunc              func(ctx context.Context, user domain.User) (domain.User, error)
	UserByEmailFunc             func(ctx context.Context, email domain.Email) (domain.User, error)
	UserByIdFunc                func(ctx context.Context, id domain.UserId) (domain.User, error)
	UserByVerificationTokenFunc func(ctx context.Context, tokenHash string) (domain.User, error)
	UserByResetTokenFunc        func(ctx context.Context, tokenHash string) (domain.User, error)
	UpdateUserFunc              func(ctx context.Context, id domain.UserId, patch domain.UserPatch) error
}

func (m *MockAuthStorage) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user)
	}
	user.Id = "user-1"
	return user, nil
}

func (m *MockAuthStorage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	if m.UserByEmailFunc != nil {
		return m.UserByEmailFunc(ctx, email)
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *MockAuthStorage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	if m.UserByIdFunc != nil {
		return m.UserByIdFunc(ctx, id)
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *MockAuthStorage) UserByVerificationToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if m.UserByVerificationTokenFunc != nil {
		return m.UserByVerificationTokenFunc(ctx, tokenHash)
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *MockAuthStorage) UserByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	if m.UserByResetTokenFunc != nil {
		return m.UserByResetTokenFunc(ctx, tokenHash)
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *MockAuthStorage) UpdateUser(ctx context.Context, id domain.UserId, patch domain.UserPatch) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, patch)
	}
	return nil
}

type MockRevocations struct {
	ConsumeFunc  func(ctx context.Context, id domain.TokenId, expiresAt time.Time) (bool, error)
	ConsumedFunc func(ctx context.Context, id domain.TokenId) (bool, error)
}

func (m *MockRevocations) Consume(ctx context.Context, id domain.TokenId, expiresAt time.Time) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, id, expiresAt)
	}
	return true, nil
}

func (m *MockRevocations) Consumed(ctx context.Context, id domain.TokenId) (bool, error) {
	if m.ConsumedFunc != nil {
		return m.ConsumedFunc(ctx, id)
	}
	return false, nil
}

type sentEmail struct {
	To, Subject, Body string
}

type MockEmail struct {
	SendFunc func(ctx context.Context, to, subject, body string) (string, error)
	Sent     []sentEmail
	mu       sync.Mutex
}

func (m *MockEmail) Send(ctx context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	m.Sent = append(m.Sent, sentEmail{to, subject, body})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return "msg-1", nil
}

type MockJwt struct {
	IssueFunc  func(userId domain.UserId, email domain.Email, class domain.TokenClass) (domain.Token, error)
	VerifyFunc func(token string, expected domain.TokenClass) (domain.Claims, error)
}

func (m *MockJwt) Issue(userId domain.UserId, email domain.Email, class domain.TokenClass) (domain.Token, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(userId, email, class)
	}
	return domain.Token{Value: string(class) + "-token-" + userId, Id: string(class) + "-jti"}, nil
}

func (m *MockJwt) Verify(token string, expected domain.TokenClass) (domain.Claims, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(token, expected)
	}
	return domain.Claims{}, jwt.ErrTokenInvalid
}

// MockHasher stores "hashed:" + plain.
type MockHasher struct {
	HashFunc    func(plain string) (string, error)
	VerifyCalls int
}

func (m *MockHasher) Hash(plain string) (string, error) {
	if m.HashFunc != nil {
		return m.HashFunc(plain)
	}
	return "hashed:" + plain, nil
}

func (m *MockHasher) Verify(plain, hash string) bool {
	m.VerifyCalls++
	return strings.HasPrefix(hash, "hashed:") && strings.TrimPrefix(hash, "hashed:") == plain
}

func testConfig() *config.Public {
	cfg := config.DefaultPublic()
	cfg.FrontendURL = "https://crm.example.com/"
	return &cfg
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type testDeps struct {
	storage     *MockAuthStorage
	revocations *MockRevocations
	email       *MockEmail
	jwt         *MockJwt
	hasher      *MockHasher
	cfg         *config.Public
}

func newTestAuth() (*Auth, *testDeps) {
	d := &testDeps{
		storage:     &MockAuthStorage{},
		revocations: &MockRevocations{},
		email:       &MockEmail{},
		jwt:         &MockJwt{},
		hasher:      &MockHasher{},
		cfg:         testConfig(),
	}
	auth := NewAuth(d.storage, d.revocations, d.email, d.jwt, d.hasher, d.cfg).WithClock(func() time.Time { return testNow })
	return auth, d
}

// tokenFromBody pulls the token query parameter out of a mailed link.
func tokenFromBody(body string) string {
	i := strings.Index(body, "token=")
	if i < 0 {
		return ""
	}
	rest := body[i+len("token="):]
	if j := strings.IndexAny(rest, "&)"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
