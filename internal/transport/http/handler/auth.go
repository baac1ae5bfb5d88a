package handler

import (
	"net/http"

	"github.com/dept-site-api/internal/application/auth"
	"github.com/dept-site-api/internal/domain"
	"github.com/dept-site-api/internal/pkg/validate"
)

type codeRequest struct {
	Email  string `json:"email"`
	Intent string `json:"intent"`
}

type confirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,code"`
}

type completeRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthHandler serves the verification-code flow and login.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

// RequestCode mints and mails a code for the given intent.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.RequestCode(r.Context(), req.Email, domain.Intent(req.Intent)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "verification code sent"})
}

func (h *AuthHandler) ConfirmCode(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	ok, err := h.svc.ConfirmCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifiedEnvelope{Verified: ok})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, domain.IntentRegister, http.StatusCreated)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, domain.IntentForgotPassword, http.StatusOK)
}

func (h *AuthHandler) complete(w http.ResponseWriter, r *http.Request, intent domain.Intent, status int) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a, err := h.svc.CompleteAction(r.Context(), req.Email, intent, auth.CompleteInput{Name: req.Name, Password: req.Password})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if intent == domain.IntentForgotPassword {
		writeJSON(w, status, MessageEnvelope{Message: "password updated"})
		return
	}
	writeJSON(w, status, a)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Bearer: res.Token, Account: res.Account})
}
