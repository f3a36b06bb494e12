package api

import "github.com/crmportal/crmportal/shared/domain"

// Request DTOs. Email syntax and the password policy are checked by the
// auth service, the tags here only reject missing fields.

type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
	Email string `json:"email,omitempty"`
}

// EmailRequest serves resend-verification, forgot-password and admin verify.
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is optional, browser clients send the cookie instead.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Response DTOs

type MessageResponse struct {
	Message string `json:"message"`
}

type LoginResponse struct {
	Message      string             `json:"message"`
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"` // for non-cookie clients
	User         domain.UserSummary `json:"user"`
}

type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"` // only when rotating
}

type UserResponse struct {
	User domain.UserSummary `json:"user"`
}
