package httpapi

import (
	"net/http"

	"github.com/dmitrymomot/credkit/core"
	"github.com/dmitrymomot/credkit/svc/account"
)

type (
	emailRequest struct {
		Email string `json:"email"`
	}

	verifyOTPRequest struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		TOTPCode string `json:"totp_code,omitempty"`
	}

	refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	resetConfirmRequest struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}

	passwordRequest struct {
		Password string `json:"password"`
	}

	totpCodeRequest struct {
		TOTPCode string `json:"totp_code"`
	}
)

// POST /auth/register
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req account.RegisterInput
	if !h.bind(w, r, &req) {
		return
	}

	u, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, core.JSONResponse{
		Message: "Registration successful. Please check your email for the verification code.",
		Data:    u,
	})
}

// POST /auth/verify-otp
func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.bind(w, r, &req) {
		return
	}

	pair, err := h.accounts.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Message: "Email verified.", Data: pair})
}

// POST /auth/resend-otp
func (h *handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{
		Message: "If the account exists and is not verified, a new code has been sent.",
	})
}

// POST /auth/login
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.TOTPRequired {
		h.ok(w, http.StatusOK, core.JSONResponse{
			Message: "Two-factor authentication required. Use /auth/login-totp.",
			Data:    res,
		})
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: res})
}

// POST /auth/login-totp
func (h *handler) loginTOTP(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}

	pair, err := h.accounts.LoginWithTOTP(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: pair})
}

// POST /auth/refresh
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.bind(w, r, &req) {
		return
	}

	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: pair})
}

// POST /auth/password-reset
func (h *handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{
		Message: "If the email exists, a password reset code has been sent.",
	})
}

// POST /auth/password-reset/confirm
func (h *handler) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.ConfirmPasswordReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Message: "Password has been reset."})
}

// GET /auth/me
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Me(r.Context(), subject(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Data: u})
}

// DELETE /auth/me
func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), subject(r), req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{Message: "Account deleted."})
}

// POST /auth/totp/enable
func (h *handler) enableTOTP(w http.ResponseWriter, r *http.Request) {
	prov, err := h.accounts.EnrollTOTP(r.Context(), subject(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{
		Message: "Scan the QR code with an authenticator app, then confirm with a code.",
		Data:    prov,
	})
}

// POST /auth/totp/verify
func (h *handler) verifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req totpCodeRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.ConfirmTOTP(r.Context(), subject(r), req.TOTPCode); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{
		Message: "Two-factor authentication enabled.",
		Data:    map[string]bool{"totp_enabled": true},
	})
}

// POST /auth/totp/disable
func (h *handler) disableTOTP(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.accounts.DisableTOTP(r.Context(), subject(r), req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, core.JSONResponse{
		Message: "Two-factor authentication disabled.",
		Data:    map[string]bool{"totp_enabled": false},
	})
}
