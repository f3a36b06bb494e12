package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/crmportal/crmportal/shared/domain"
)

const (
	verificationSubject = "Verify your email"
	resetSubject        = "Reset your password"
)

func (a *Auth) link(path string, query url.Values) string {
	return strings.TrimRight(a.cfg.FrontendURL, "/") + path + "?" + query.Encode()
}

func (a *Auth) sendVerification(ctx context.Context, email domain.Email, token string) error {
	link := a.link("/verify-email", url.Values{"token": {token}, "email": {email}})
	body := fmt.Sprintf(`Hello,

Please verify your email address by following [this link](%s).

The link is valid for %s. If you did not create an account, ignore this email.
`, link, humanDuration(a.cfg.VerificationTokenTTL.Hours()))

	_, err := a.email.Send(ctx, email, verificationSubject, body)
	return err
}

func (a *Auth) sendReset(ctx context.Context, email domain.Email, token string) error {
	link := a.link("/reset-password", url.Values{"token": {token}})
	body := fmt.Sprintf(`Hello,

Someone asked to reset the password for this account. To choose a new password follow [this link](%s).

The link is valid for %s. If it was not you, ignore this email and your password stays the same.
`, link, humanDuration(a.cfg.ResetTokenTTL.Hours()))

	_, err := a.email.Send(ctx, email, resetSubject, body)
	return err
}

func humanDuration(hours float64) string {
	switch {
	case hours == 1:
		return "1 hour"
	case hours >= 1 && hours == float64(int(hours)):
		return fmt.Sprintf("%d hours", int(hours))
	default:
		return fmt.Sprintf("%d minutes", int(hours*60))
	}
}
