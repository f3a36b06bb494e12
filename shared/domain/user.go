package domain

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type User struct {
	Id       UserId
	Email    Email
	PassHash string
	Verified bool

	// digests of the emailed one-time tokens, empty when nothing is pending
	VerificationTokenHash string
	VerificationExpires   time.Time
	ResetTokenHash        string
	ResetExpires          time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u User) Summary() UserSummary {
	return UserSummary{Id: u.Id, Email: u.Email}
}

type UserSummary struct {
	Id    UserId `json:"id"`
	Email Email  `json:"email"`
}

// UserPatch lists the fields to change, nil means untouched.
// If* fields make the update conditional on the current token digest,
// a store reports ErrNotFound when the condition does not hold.
type UserPatch struct {
	PassHash *string
	Verified *bool

	VerificationTokenHash *string
	VerificationExpires   *time.Time
	ResetTokenHash        *string
	ResetExpires          *time.Time

	IfVerificationTokenHash *string
	IfResetTokenHash        *string
}

// Apply mutates u and reports whether the guards held.
func (p UserPatch) Apply(u *User) bool {
	if p.IfVerificationTokenHash != nil && u.VerificationTokenHash != *p.IfVerificationTokenHash {
		return false
	}
	if p.IfResetTokenHash != nil && u.ResetTokenHash != *p.IfResetTokenHash {
		return false
	}
	if p.PassHash != nil {
		u.PassHash = *p.PassHash
	}
	if p.Verified != nil {
		u.Verified = *p.Verified
	}
	if p.VerificationTokenHash != nil {
		u.VerificationTokenHash = *p.VerificationTokenHash
	}
	if p.VerificationExpires != nil {
		u.VerificationExpires = *p.VerificationExpires
	}
	if p.ResetTokenHash != nil {
		u.ResetTokenHash = *p.ResetTokenHash
	}
	if p.ResetExpires != nil {
		u.ResetExpires = *p.ResetExpires
	}
	return true
}
