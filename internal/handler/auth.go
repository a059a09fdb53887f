// Package handler contains the HTTP handlers of the GlicoFlow API.
//
// Handlers are glue between HTTP and the services:
//  1. parse the request (body, query, identity from context)
//  2. call one service method
//  3. write the response, or hand the error to writeError
//
// They hold no business rules. Each handler depends on a small interface
// describing just the service methods it calls, so tests can swap in a mock.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/glicoflow/internal/apperror"
	"github.com/sakif/glicoflow/internal/auth"
	"github.com/sakif/glicoflow/internal/model"
	"github.com/sakif/glicoflow/internal/service"
)

// AuthService is what AuthHandler needs from service.AuthService.
type AuthService interface {
	CheckUsernameAvailable(ctx context.Context, username string) (bool, error)
	Register(ctx context.Context, username, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	CurrentUser(ctx context.Context, id model.Identity) (*model.User, error)
}

// AuthHandler serves the /api/auth routes.
type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

type checkUsernameRequest struct {
	Username string `json:"username"`
}

type checkUsernameResponse struct {
	Success   bool `json:"success"`
	Available bool `json:"available"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// UserResponse is returned by me.
type UserResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HandleCheckUsername handles POST /api/auth/check-username.
func (h *AuthHandler) HandleCheckUsername(w http.ResponseWriter, r *http.Request) {
	var req checkUsernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	available, err := h.service.CheckUsernameAvailable(r.Context(), req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkUsernameResponse{Success: true, Available: available})
}

// HandleRegister handles POST /api/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: res.User, Token: res.Token})
}

// HandleLogin handles POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: res.User, Token: res.Token})
}

// HandleMe handles GET /api/auth/me. Must sit behind auth.RequireAuth.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

// HandleLogout handles POST /api/auth/logout.
//
// Sessions are stateless JWTs: there is nothing to revoke server-side, the
// client just discards its token. The route exists so clients have one
// place to call, and it still requires a valid token.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		h.logger.Info("user logged out", slog.String("userID", id.UserID))
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}
