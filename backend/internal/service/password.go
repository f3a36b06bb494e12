package service

import (
	"fmt"
	"unicode"

	"github.com/crmportal/crmportal/shared/config"
)

// validatePassword returns one detail per broken rule.
func validatePassword(policy config.PasswordPolicy, password string) []string {
	var details []string
	if len([]rune(password)) < policy.MinLength {
		details = append(details, fmt.Sprintf("password: must be at least %d characters", policy.MinLength))
	}
	if policy.MaxLength > 0 && len(password) > policy.MaxLength {
		details = append(details, fmt.Sprintf("password: must be at most %d bytes", policy.MaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			special = true
		}
	}

	if policy.RequireUpper && !upper {
		details = append(details, "password: must contain an uppercase letter")
	}
	if policy.RequireLower && !lower {
		details = append(details, "password: must contain a lowercase letter")
	}
	if policy.RequireDigit && !digit {
		details = append(details, "password: must contain a digit")
	}
	if policy.RequireSpecial && !special {
		details = append(details, "password: must contain a special character")
	}
	return details
}
