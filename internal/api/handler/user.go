package handler

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var chatHandlePattern = regexp.MustCompile(`^@?[A-Za-z0-9_]{3,64}$`)

// UserStore persists and loads users.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserHandler struct {
	users UserStore
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatHandle  string `json:"chat_handle"`
		DisplayName string `json:"display_name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	handle := strings.TrimSpace(req.ChatHandle)
	if !chatHandlePattern.MatchString(handle) {
		RespondError(w, r, http.StatusBadRequest, "user/invalid-handle", "chat_handle must be 3-64 letters, digits or underscores")
		return
	}

	user := &models.User{
		ID:          uuid.New(),
		ChatHandle:  handle,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        domain.RoleUser,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("create user failed", zap.Error(err), zap.String("chat_handle", handle))
		RespondError(w, r, http.StatusInternalServerError, "user/create-failed", "Failed to create user")
		return
	}

	RespondJSON(w, http.StatusCreated, user)
}
