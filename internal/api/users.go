package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	DB     *sql.DB
	Logger *zap.Logger
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		h.Logger.Error("failed to list users", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password, and role required")
		return
	}

	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Username, string(hash), req.Role)
	if err != nil {
		writeError(w, h.Logger, "failed to create user", err)
		return
	}

	claims := GetClaims(r.Context())
	h.Logger.Info("user created",
		zap.String("user", claims.Username),
		zap.String("new_user", req.Username),
		zap.String("role", req.Role),
	)
	jsonResponse(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.target(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.target(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := store.SetUserRole(r.Context(), h.DB, user.ID, req.Role); err != nil {
		writeError(w, h.Logger, "failed to update user", err)
		return
	}
	user.Role = req.Role

	claims := GetClaims(r.Context())
	h.Logger.Info("user role updated",
		zap.String("user", claims.Username),
		zap.String("target_user", user.Username),
		zap.String("new_role", req.Role),
	)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user, ok := h.target(w, r)
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, string(hash)); err != nil {
		h.Logger.Error("failed to reset password", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	claims := GetClaims(r.Context())
	h.Logger.Info("user password reset", zap.String("user", claims.Username), zap.String("target_user", user.Username))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.target(w, r)
	if !ok {
		return
	}

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims != nil && claims.UserID == user.ID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteUser(r.Context(), h.DB, user.ID); err != nil {
		writeError(w, h.Logger, "failed to delete user", err)
		return
	}

	h.Logger.Info("user deleted", zap.String("user", claims.Username), zap.String("deleted_user", user.Username))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// target loads the active user named by the {id} path value, writing the
// error response itself when there is none.
func (h *UsersHandler) target(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return nil, false
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		h.Logger.Error("failed to get user", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return nil, false
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	return user, true
}
