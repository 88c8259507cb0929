package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/middleware"
	"github.com/mindspring/mindweb/internal/model"
	"github.com/mindspring/mindweb/internal/store"
	"github.com/mindspring/mindweb/pkg/logger"
)

// UserHandler handles user presence endpoints.
type UserHandler struct {
	users  store.UserStore
	logger *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users store.UserStore, log *logger.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: log,
	}
}

// Visit handles POST /api/users/visit.
func (h *UserHandler) Visit(w http.ResponseWriter, r *http.Request) {
	var req model.VisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateUsername(req.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetOrCreateUser(r.Context(), req.UserID, req.Username, req.Emoji)
	if err != nil {
		h.logger.Error("failed to track user visit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to track user visit")
		return
	}

	writeJSON(w, http.StatusOK, model.VisitResponse{
		Success: true,
		Message: fmt.Sprintf("User %s visit tracked successfully", user.Username),
	})
}

// Online handles GET /api/users/online.
func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.OnlineUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list online users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve online users")
		return
	}

	if users == nil {
		users = []model.User{}
	}

	writeJSON(w, http.StatusOK, model.OnlineUsersResponse{
		Success: true,
		Users:   users,
		Count:   len(users),
	})
}
