package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/ussd-relay/internal/api/middleware"
	"github.com/ayo6706/ussd-relay/internal/api/problem"
	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

func requestActor(r *http.Request) (uuid.UUID, string, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, "", errors.New("missing user in auth context")
	}
	actorID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid user_id in auth context")
	}
	return actorID, middleware.UserRoleFromContext(r.Context()), nil
}

func queryInt32(r *http.Request, name string, fallback int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}

// writeServiceError maps domain and service errors to problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-amount", err.Error())
	case errors.Is(err, domain.ErrInvalidPhone):
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-phone", err.Error())
	case errors.Is(err, domain.ErrInvalidBalance):
		RespondError(w, r, http.StatusBadRequest, "balance/invalid-balance", err.Error())
	case errors.Is(err, service.ErrInvalidResultStatus):
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-result-status", err.Error())
	case errors.Is(err, service.ErrDuplicateRecipient):
		RespondError(w, r, http.StatusConflict, "transfer/duplicate-recipient", err.Error())
	case errors.Is(err, service.ErrTransferNotProcessing):
		RespondError(w, r, http.StatusConflict, "transfer/not-processing", err.Error())
	case errors.Is(err, service.ErrUnsupportedRecipient):
		RespondError(w, r, http.StatusUnprocessableEntity, "transfer/unsupported-recipient", err.Error())
	case errors.Is(err, service.ErrUnknownOperator):
		RespondError(w, r, http.StatusUnprocessableEntity, "balance/unknown-operator", err.Error())
	case errors.Is(err, service.ErrTransferNotFound), errors.Is(err, service.ErrForbidden):
		RespondError(w, r, http.StatusNotFound, "transfer/not-found", "transfer not found")
	case errors.Is(err, service.ErrBalanceJobNotFound):
		RespondError(w, r, http.StatusNotFound, "balance/job-not-found", err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		RespondError(w, r, http.StatusNotFound, "user/not-found", err.Error())
	default:
		if status, pType, msg, ok := mapDBError(err); ok {
			RespondError(w, r, status, pType, msg)
			return
		}
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	default:
		return 0, "", "", false
	}
}
