package handler

import (
	"net/http"

	"github.com/crmportal/crmportal/shared/api"
	"github.com/crmportal/crmportal/shared/errors"
	"github.com/crmportal/crmportal/shared/logger"
	"github.com/crmportal/crmportal/shared/middleware"
	"github.com/crmportal/crmportal/shared/utils"
)

const (
	msgRegistered     = "Registration successful. Please check your email to verify your account."
	msgLoggedIn       = "Login successful."
	msgVerified       = "Email verified successfully."
	msgResent         = "Verification email sent. Please check your inbox."
	msgForgotPassword = "If an account with that email exists, a password reset link has been sent."
	msgPasswordReset  = "Password has been reset successfully. You can now log in."
	msgLoggedOut      = "Logged out successfully"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.Register(r.Context(), body.Email, body.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, api.MessageResponse{Message: msgRegistered})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.setAccessCookie(w, result.Tokens.Access)
	h.setRefreshCookie(w, result.Tokens.Refresh)
	utils.WriteJSON(w, http.StatusOK, api.LoginResponse{
		Message:      msgLoggedIn,
		AccessToken:  result.Tokens.Access.Value,
		RefreshToken: result.Tokens.Refresh.Value,
		User:         result.User,
	})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body api.VerifyEmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), body.Token, body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: msgVerified})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var body api.EmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ResendVerification(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: msgResent})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body api.EmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: msgForgotPassword})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body api.ResetPasswordRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: msgPasswordReset})
}

// refreshTokenFrom reads the cookie first and falls back to the JSON body.
func refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body api.RefreshRequest
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	if err := utils.Decode(r.Body, &body); err != nil {
		logger.Log.Debug("refresh body not decoded", "error", err)
		return ""
	}
	return body.RefreshToken
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		utils.WriteErrorAndStatusCode(w, errors.New(errors.CodeInvalidRefreshToken, http.StatusUnauthorized, "Refresh token required"))
		return
	}

	result, err := h.auth.RefreshToken(r.Context(), token)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	h.setAccessCookie(w, result.Access)
	response := api.RefreshResponse{AccessToken: result.Access.Value}
	if result.Refresh.Value != "" {
		h.setRefreshCookie(w, result.Refresh)
		response.RefreshToken = result.Refresh.Value
	}
	utils.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), refreshTokenFrom(r))
	h.clearCookies(w)
	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: msgLoggedOut})
}

// Me must run behind middleware.Auth.NeedAuth.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		utils.WriteErrorAndStatusCode(w, errors.Unauthorized("Access token required"))
		return
	}

	summary, err := h.auth.CurrentUser(r.Context(), user.Id)
	if err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.UserResponse{User: summary})
}
