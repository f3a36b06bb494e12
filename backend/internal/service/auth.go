package service

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/crmportal/crmportal/shared/config"
	"github.com/crmportal/crmportal/shared/crypto"
	"github.com/crmportal/crmportal/shared/domain"
	"github.com/crmportal/crmportal/shared/errors"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/crmportal/crmportal/shared/utils"
)

type AuthService interface {
	Register(ctx context.Context, email domain.Email, password domain.Password) error
	Login(ctx context.Context, email domain.Email, password domain.Password) (domain.LoginResult, error)
	VerifyEmail(ctx context.Context, token string, email domain.Email) error
	ResendVerification(ctx context.Context, email domain.Email) error
	ForgotPassword(ctx context.Context, email domain.Email) error
	ResetPassword(ctx context.Context, token string, newPassword domain.Password) error
	RefreshToken(ctx context.Context, refreshToken string) (domain.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string)
	CurrentUser(ctx context.Context, id domain.UserId) (domain.UserSummary, error)
	Authenticate(ctx context.Context, accessToken string) (domain.UserSummary, error)
	AdminVerifyEmail(ctx context.Context, email domain.Email) error
}

// AuthStorage returns domain.ErrNotFound for missing rows and for
// UpdateUser calls whose If* guards do not hold, domain.ErrConflict
// when CreateUser hits an existing email.
type AuthStorage interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByEmail(ctx context.Context, email domain.Email) (domain.User, error)
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
	UserByVerificationToken(ctx context.Context, tokenHash string) (domain.User, error)
	UserByResetToken(ctx context.Context, tokenHash string) (domain.User, error)
	UpdateUser(ctx context.Context, id domain.UserId, patch domain.UserPatch) error
}

// Revocations remembers refresh token ids that were already exchanged or
// logged out. Consume reports false when id was consumed before, Consumed
// only looks.
type Revocations interface {
	Consume(ctx context.Context, id domain.TokenId, expiresAt time.Time) (bool, error)
	Consumed(ctx context.Context, id domain.TokenId) (bool, error)
}

type Email interface {
	Send(ctx context.Context, to domain.Email, subject, body string) (string, error)
}

type Jwt interface {
	Issue(userId domain.UserId, email domain.Email, class domain.TokenClass) (domain.Token, error)
	Verify(token string, expected domain.TokenClass) (domain.Claims, error)
}

type Auth struct {
	storage      AuthStorage
	revocations  Revocations
	email        Email
	jwt          Jwt
	hasher       crypto.Hasher
	cfg          *config.Public
	verification *crypto.OneTimeGenerator
	reset        *crypto.OneTimeGenerator
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuth(storage AuthStorage, revocations Revocations, email Email, jwt Jwt, hasher crypto.Hasher, cfg *config.Public) *Auth {
	return &Auth{
		storage:      storage,
		revocations:  revocations,
		email:        email,
		jwt:          jwt,
		hasher:       hasher,
		cfg:          cfg,
		verification: crypto.NewOneTimeGenerator(cfg.VerificationTokenTTL),
		reset:        crypto.NewOneTimeGenerator(cfg.ResetTokenTTL),
		now:          time.Now,
	}
}

// WithClock replaces time.Now for expiry checks and token generation.
func (a *Auth) WithClock(now func() time.Time) *Auth {
	a.now = now
	a.verification.WithClock(now)
	a.reset.WithClock(now)
	return a
}

var (
	errEmailExists         = errors.New(errors.CodeEmailExists, http.StatusBadRequest, "Email already registered")
	errInvalidCredentials  = errors.New(errors.CodeInvalidCredentials, http.StatusUnauthorized, "Invalid credentials")
	errNotVerified         = errors.New(errors.CodeAccountNotVerified, http.StatusUnauthorized, "Account not verified. Please check your email for the verification link.")
	errInvalidToken        = errors.New(errors.CodeInvalidToken, http.StatusBadRequest, "Invalid or expired verification token")
	errUserNotFound        = errors.New(errors.CodeUserNotFound, http.StatusNotFound, "User not found")
	errAlreadyVerified     = errors.New(errors.CodeAlreadyVerified, http.StatusBadRequest, "Email is already verified")
	errEmailSendFailed     = errors.New(errors.CodeEmailSendFailed, http.StatusInternalServerError, "Failed to send verification email")
	errInvalidResetToken   = errors.New(errors.CodeInvalidOrExpiredToken, http.StatusBadRequest, "Invalid or expired reset token")
	errInvalidRefreshToken = errors.New(errors.CodeInvalidRefreshToken, http.StatusUnauthorized, "Invalid or expired refresh token")
	errUnauthorized        = errors.Unauthorized("Authentication required")
)

func normalizeEmail(email domain.Email) domain.Email {
	return strings.TrimSpace(email)
}

func validateEmail(email domain.Email) []string {
	if err := utils.ValidateVar(email, "required,email,max=254"); err != nil {
		return []string{"email: must be a valid email address"}
	}
	return nil
}

func (a *Auth) expired(expires time.Time) bool {
	return expires.IsZero() || !a.now().Before(expires)
}

// Register creates an unverified user and mails the verification link.
// A failed send is logged, the account stays and can ask for a resend.
func (a *Auth) Register(ctx context.Context, email domain.Email, password domain.Password) error {
	email = normalizeEmail(email)

	details := append(validateEmail(email), validatePassword(a.cfg.PasswordPolicy, password)...)
	if len(details) > 0 {
		recordEvent("register", outcomeRejected)
		return errors.Validation("Invalid registration data", details...)
	}

	if _, err := a.storage.UserByEmail(ctx, email); err == nil {
		recordEvent("register", outcomeRejected)
		return errEmailExists
	} else if !stderrors.Is(err, domain.ErrNotFound) {
		return err
	}

	passHash, err := a.hasher.Hash(password)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}
	token, err := a.verification.Generate()
	if err != nil {
		logger.Log.Error("failed to generate verification token", "error", err)
		return err
	}

	user, err := a.storage.CreateUser(ctx, domain.User{
		Email:                 email,
		PassHash:              passHash,
		VerificationTokenHash: token.Hash,
		VerificationExpires:   token.ExpiresAt,
	})
	if stderrors.Is(err, domain.ErrConflict) {
		recordEvent("register", outcomeRejected)
		return errEmailExists
	}
	if err != nil {
		return err
	}

	if err := a.sendVerification(ctx, user.Email, token.Token); err != nil {
		logger.Log.Error("failed to send verification email", "user_id", user.Id, "error", err)
	}

	logger.Log.Info("user registered", "user_id", user.Id)
	recordEvent("register", outcomeSuccess)
	return nil
}

func (a *Auth) dummy() string {
	a.dummyOnce.Do(func() {
		hash, err := a.hasher.Hash("timing-equalizer-password")
		if err != nil {
			logger.Log.Warn("failed to prepare dummy hash", "error", err)
			return
		}
		a.dummyHash = hash
	})
	return a.dummyHash
}

// Login checks the password before the verified flag, so an unverified
// account is only revealed to someone who knows its password.
func (a *Auth) Login(ctx context.Context, email domain.Email, password domain.Password) (domain.LoginResult, error) {
	email = normalizeEmail(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrNotFound) {
		a.hasher.Verify(password, a.dummy())
		recordEvent("login", outcomeRejected)
		return domain.LoginResult{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResult{}, err
	}

	if !a.hasher.Verify(password, user.PassHash) {
		recordEvent("login", outcomeRejected)
		return domain.LoginResult{}, errInvalidCredentials
	}
	if !user.Verified && !a.cfg.SkipVerification {
		recordEvent("login", outcomeRejected)
		return domain.LoginResult{}, errNotVerified
	}

	access, err := a.jwt.Issue(user.Id, user.Email, domain.AccessToken)
	if err != nil {
		logger.Log.Error("failed to issue access token", "user_id", user.Id, "error", err)
		return domain.LoginResult{}, err
	}
	refresh, err := a.jwt.Issue(user.Id, user.Email, domain.RefreshToken)
	if err != nil {
		logger.Log.Error("failed to issue refresh token", "user_id", user.Id, "error", err)
		return domain.LoginResult{}, err
	}

	recordEvent("login", outcomeSuccess)
	return domain.LoginResult{
		Tokens: domain.TokenPair{Access: access, Refresh: refresh},
		User:   user.Summary(),
	}, nil
}

// VerifyEmail consumes a verification token. When email is not empty it
// must belong to the token's owner.
func (a *Auth) VerifyEmail(ctx context.Context, token string, email domain.Email) error {
	token = strings.TrimSpace(token)
	if token == "" {
		recordEvent("verify_email", outcomeRejected)
		return errInvalidToken
	}

	user, err := a.storage.UserByVerificationToken(ctx, crypto.HashToken(token))
	if stderrors.Is(err, domain.ErrNotFound) {
		recordEvent("verify_email", outcomeRejected)
		return errInvalidToken
	}
	if err != nil {
		return err
	}

	if email = normalizeEmail(email); email != "" && email != user.Email {
		recordEvent("verify_email", outcomeRejected)
		return errInvalidToken
	}
	if a.expired(user.VerificationExpires) {
		recordEvent("verify_email", outcomeRejected)
		return errInvalidToken
	}

	hash, expires := domain.ClearToken()
	err = a.storage.UpdateUser(ctx, user.Id, domain.UserPatch{
		Verified:                domain.Ptr(true),
		VerificationTokenHash:   hash,
		VerificationExpires:     expires,
		IfVerificationTokenHash: domain.Ptr(user.VerificationTokenHash),
	})
	if stderrors.Is(err, domain.ErrNotFound) {
		// consumed concurrently
		recordEvent("verify_email", outcomeRejected)
		return errInvalidToken
	}
	if err != nil {
		return err
	}

	logger.Log.Info("email verified", "user_id", user.Id)
	recordEvent("verify_email", outcomeSuccess)
	return nil
}

// ResendVerification replaces the pending token. If the mail cannot be
// sent the previous token is put back so the earlier link keeps working.
func (a *Auth) ResendVerification(ctx context.Context, email domain.Email) error {
	email = normalizeEmail(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrNotFound) {
		recordEvent("resend_verification", outcomeRejected)
		return errUserNotFound
	}
	if err != nil {
		return err
	}
	if user.Verified {
		recordEvent("resend_verification", outcomeRejected)
		return errAlreadyVerified
	}

	token, err := a.verification.Generate()
	if err != nil {
		logger.Log.Error("failed to generate verification token", "error", err)
		return err
	}
	err = a.storage.UpdateUser(ctx, user.Id, domain.UserPatch{
		VerificationTokenHash: domain.Ptr(token.Hash),
		VerificationExpires:   domain.Ptr(token.ExpiresAt),
	})
	if err != nil {
		return err
	}

	if err := a.sendVerification(ctx, user.Email, token.Token); err != nil {
		logger.Log.Error("failed to resend verification email", "user_id", user.Id, "error", err)
		restore := domain.UserPatch{
			VerificationTokenHash:   domain.Ptr(user.VerificationTokenHash),
			VerificationExpires:     domain.Ptr(user.VerificationExpires),
			IfVerificationTokenHash: domain.Ptr(token.Hash),
		}
		if err := a.storage.UpdateUser(ctx, user.Id, restore); err != nil && !stderrors.Is(err, domain.ErrNotFound) {
			logger.Log.Error("failed to restore verification token", "user_id", user.Id, "error", err)
		}
		recordEvent("resend_verification", outcomeFailed)
		return errEmailSendFailed
	}

	recordEvent("resend_verification", outcomeSuccess)
	return nil
}

// ForgotPassword answers the same way whether or not the account exists.
// Only a malformed email is reported back.
func (a *Auth) ForgotPassword(ctx context.Context, email domain.Email) error {
	email = normalizeEmail(email)
	if details := validateEmail(email); len(details) > 0 {
		return errors.Validation("Invalid email", details...)
	}

	user, err := a.storage.UserByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrNotFound) {
		logger.Log.Debug("password reset requested for unknown email")
		recordEvent("forgot_password", outcomeRejected)
		return nil
	}
	if err != nil {
		logger.Log.Error("failed to look up user for password reset", "error", err)
		recordEvent("forgot_password", outcomeFailed)
		return nil
	}

	token, err := a.reset.Generate()
	if err != nil {
		logger.Log.Error("failed to generate reset token", "error", err)
		recordEvent("forgot_password", outcomeFailed)
		return nil
	}
	err = a.storage.UpdateUser(ctx, user.Id, domain.UserPatch{
		ResetTokenHash: domain.Ptr(token.Hash),
		ResetExpires:   domain.Ptr(token.ExpiresAt),
	})
	if err != nil {
		logger.Log.Error("failed to store reset token", "user_id", user.Id, "error", err)
		recordEvent("forgot_password", outcomeFailed)
		return nil
	}

	if err := a.sendReset(ctx, user.Email, token.Token); err != nil {
		logger.Log.Error("failed to send reset email", "user_id", user.Id, "error", err)
		recordEvent("forgot_password", outcomeFailed)
		return nil
	}

	recordEvent("forgot_password", outcomeSuccess)
	return nil
}

func (a *Auth) ResetPassword(ctx context.Context, token string, newPassword domain.Password) error {
	if details := validatePassword(a.cfg.PasswordPolicy, newPassword); len(details) > 0 {
		recordEvent("reset_password", outcomeRejected)
		return errors.Validation("Invalid password", details...)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		recordEvent("reset_password", outcomeRejected)
		return errInvalidResetToken
	}

	user, err := a.storage.UserByResetToken(ctx, crypto.HashToken(token))
	if stderrors.Is(err, domain.ErrNotFound) {
		recordEvent("reset_password", outcomeRejected)
		return errInvalidResetToken
	}
	if err != nil {
		return err
	}
	if a.expired(user.ResetExpires) {
		recordEvent("reset_password", outcomeRejected)
		return errInvalidResetToken
	}

	passHash, err := a.hasher.Hash(newPassword)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return err
	}

	hash, expires := domain.ClearToken()
	err = a.storage.UpdateUser(ctx, user.Id, domain.UserPatch{
		PassHash:         domain.Ptr(passHash),
		ResetTokenHash:   hash,
		ResetExpires:     expires,
		IfResetTokenHash: domain.Ptr(user.ResetTokenHash),
	})
	if stderrors.Is(err, domain.ErrNotFound) {
		recordEvent("reset_password", outcomeRejected)
		return errInvalidResetToken
	}
	if err != nil {
		return err
	}

	logger.Log.Info("password reset", "user_id", user.Id)
	recordEvent("reset_password", outcomeSuccess)
	return nil
}

// RefreshToken exchanges a refresh token for a new access token. With
// rotation on, the presented token is consumed and a new one is returned.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (domain.RefreshResult, error) {
	claims, err := a.jwt.Verify(refreshToken, domain.RefreshToken)
	if err != nil {
		logger.Log.Debug("refresh token rejected", "error", err)
		recordEvent("refresh", outcomeRejected)
		return domain.RefreshResult{}, errInvalidRefreshToken
	}

	user, err := a.storage.UserById(ctx, claims.UserId)
	if stderrors.Is(err, domain.ErrNotFound) {
		recordEvent("refresh", outcomeRejected)
		return domain.RefreshResult{}, errInvalidRefreshToken
	}
	if err != nil {
		return domain.RefreshResult{}, err
	}

	if !a.cfg.RotateRefreshTokens {
		used, err := a.revocations.Consumed(ctx, claims.TokenId)
		if err != nil {
			logger.Log.Error("failed to check refresh token", "user_id", user.Id, "error", err)
			return domain.RefreshResult{}, err
		}
		if used {
			logger.Log.Warn("revoked refresh token presented", "user_id", user.Id)
			recordEvent("refresh", outcomeRejected)
			return domain.RefreshResult{}, errInvalidRefreshToken
		}
	}

	var result domain.RefreshResult
	if result.Access, err = a.jwt.Issue(user.Id, user.Email, domain.AccessToken); err != nil {
		logger.Log.Error("failed to issue access token", "user_id", user.Id, "error", err)
		return domain.RefreshResult{}, err
	}
	if !a.cfg.RotateRefreshTokens {
		recordEvent("refresh", outcomeSuccess)
		return result, nil
	}

	if result.Refresh, err = a.jwt.Issue(user.Id, user.Email, domain.RefreshToken); err != nil {
		logger.Log.Error("failed to issue refresh token", "user_id", user.Id, "error", err)
		return domain.RefreshResult{}, err
	}
	// the presented token stays usable until its replacement exists
	fresh, err := a.revocations.Consume(ctx, claims.TokenId, claims.ExpiresAt)
	if err != nil {
		logger.Log.Error("failed to consume refresh token", "user_id", user.Id, "error", err)
		return domain.RefreshResult{}, err
	}
	if !fresh {
		logger.Log.Warn("refresh token reused", "user_id", user.Id)
		recordEvent("refresh", outcomeRejected)
		return domain.RefreshResult{}, errInvalidRefreshToken
	}

	recordEvent("refresh", outcomeSuccess)
	return result, nil
}

// Logout never fails. A valid refresh token is consumed so it cannot be
// exchanged later, with or without rotation.
func (a *Auth) Logout(ctx context.Context, refreshToken string) {
	recordEvent("logout", outcomeSuccess)
	if refreshToken == "" {
		return
	}
	claims, err := a.jwt.Verify(refreshToken, domain.RefreshToken)
	if err != nil {
		return
	}
	if _, err := a.revocations.Consume(ctx, claims.TokenId, claims.ExpiresAt); err != nil {
		logger.Log.Warn("failed to revoke refresh token on logout", "user_id", claims.UserId, "error", err)
	}
}

func (a *Auth) CurrentUser(ctx context.Context, id domain.UserId) (domain.UserSummary, error) {
	user, err := a.storage.UserById(ctx, id)
	if stderrors.Is(err, domain.ErrNotFound) {
		return domain.UserSummary{}, errUserNotFound
	}
	if err != nil {
		return domain.UserSummary{}, err
	}
	return user.Summary(), nil
}

// Authenticate resolves an access token to its live user.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (domain.UserSummary, error) {
	if accessToken == "" {
		return domain.UserSummary{}, errUnauthorized
	}
	claims, err := a.jwt.Verify(accessToken, domain.AccessToken)
	if err != nil {
		logger.Log.Debug("access token rejected", "error", err)
		return domain.UserSummary{}, errors.Unauthorized("Invalid or expired token")
	}

	user, err := a.storage.UserById(ctx, claims.UserId)
	if stderrors.Is(err, domain.ErrNotFound) {
		return domain.UserSummary{}, errors.Unauthorized("User not found")
	}
	if err != nil {
		return domain.UserSummary{}, err
	}
	return user.Summary(), nil
}

// AdminVerifyEmail marks an account verified without a token. Idempotent.
func (a *Auth) AdminVerifyEmail(ctx context.Context, email domain.Email) error {
	email = normalizeEmail(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if stderrors.Is(err, domain.ErrNotFound) {
		return errUserNotFound
	}
	if err != nil {
		return err
	}
	if user.Verified {
		return nil
	}

	hash, expires := domain.ClearToken()
	err = a.storage.UpdateUser(ctx, user.Id, domain.UserPatch{
		Verified:              domain.Ptr(true),
		VerificationTokenHash: hash,
		VerificationExpires:   expires,
	})
	if err != nil {
		return err
	}

	logger.Log.Info("email verified by admin", "user_id", user.Id)
	recordEvent("admin_verify_email", outcomeSuccess)
	return nil
}
