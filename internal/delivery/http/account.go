package http

import (
	"net/http"

	"github.com/egannguyen/cart-ecommerce/internal/service"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type activateRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Accounts.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "account created, check your email for the activation code",
		"user":    user,
	})
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.svc.Accounts.Activate(r.Context(), req.Email, req.OTP)
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Accounts.ResendOTP(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "a new code has been sent"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	h.respond(w, r, http.StatusOK, session, err)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Accounts.Logout(r.Context(), identityFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "if the email is registered, a reset link has been sent"})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Accounts.ResetPassword(r.Context(), req.Email, req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.svc.Accounts.ListAddresses(r.Context(), identityFrom(r.Context()))
	h.respond(w, r, http.StatusOK, addrs, err)
}

func (h *Handler) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	var req service.AddressInput
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	addr, err := h.svc.Accounts.AddAddress(r.Context(), identityFrom(r.Context()), req)
	h.respond(w, r, http.StatusCreated, addr, err)
}

func (h *Handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.Accounts.ListSavedCards(r.Context(), identityFrom(r.Context()))
	h.respond(w, r, http.StatusOK, cards, err)
}
