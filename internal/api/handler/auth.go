package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenIssuer signs user tokens.
type TokenIssuer interface {
	IssueToken(userID uuid.UUID, role string) (string, time.Time, error)
}

type AuthHandler struct {
	users  UserStore
	tokens TokenIssuer
}

func NewAuthHandler(users UserStore, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// Login exchanges a known user id for a token. Identity is asserted by the chat front end.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	uid, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "auth/invalid-user-id", "Invalid user_id")
		return
	}

	user, err := h.users.GetUser(r.Context(), uid)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			RespondError(w, r, http.StatusNotFound, "user/not-found", "User not found")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	token, expires, err := h.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		zap.L().Error("sign token failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "auth/sign-failed", "Failed to sign token")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
	})
}
