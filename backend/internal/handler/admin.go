package handler

import (
	"net/http"

	"github.com/crmportal/crmportal/shared/api"
	"github.com/crmportal/crmportal/shared/utils"
)

// AdminVerifyEmail must run behind middleware.AdminOnly.
func (h *Handler) AdminVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body api.EmailRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.AdminVerifyEmail(r.Context(), body.Email); err != nil {
		utils.WriteErrorAndStatusCode(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "User verified"})
}
