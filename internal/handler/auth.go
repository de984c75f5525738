package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/Shivanand-hulikatti/event-planner/internal/service"
)

// AuthHandler holds the HTTP handlers of the auth resource.
type AuthHandler struct {
	svc *service.AuthService
	ew  errorWriter
}

func NewAuthHandler(svc *service.AuthService, hideInternal bool) *AuthHandler {
	return &AuthHandler{svc: svc, ew: errorWriter{hideInternal: hideInternal}}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ew.write(w, r, err)
		return
	}

	session, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Registration successful", session)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ew.write(w, r, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Login successful", session)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), viewerID(r.Context()))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"user": user})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so the client
// discards its token and nothing changes server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "Logged out successfully", nil)
}

// UpdateProfile handles PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ew.write(w, r, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), viewerID(r.Context()), req)
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": user})
}
