package handler

import (
	"net/http"
	"time"

	"github.com/snapgram/snapgram/internal/service"
	"github.com/snapgram/snapgram/internal/validation"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = validation.ValidateEmail(body.Email)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = validation.ValidateName(body.Name)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = validation.ValidatePassword(body.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.auth.Signup(body.Email, body.Username, body.Name, body.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := h.auth.GenerateJWT(user)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.auth.SetJWTCookie(w, token, time.Now().Add(h.auth.JWTExpiry()))

	respondJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	err := decodeJSON(r, &body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.auth.Login(body.Email, body.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := h.auth.GenerateJWT(user)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.auth.SetJWTCookie(w, token, time.Now().Add(h.auth.JWTExpiry()))

	respondJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.ClearJWTCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
