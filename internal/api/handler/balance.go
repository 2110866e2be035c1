package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
)

// BalanceRequester is the owner-facing side of balance inquiries.
type BalanceRequester interface {
	Request(ctx context.Context, ownerID uuid.UUID, operator string) (models.BalanceJob, error)
	Cancel(ownerID uuid.UUID) bool
}

type BalanceHandler struct {
	svc BalanceRequester
}

func NewBalanceHandler(svc BalanceRequester) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

type balanceInquiryResponse struct {
	JobID     string    `json:"job_id"`
	Operator  string    `json:"operator"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *BalanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-actor", err.Error())
		return
	}
	var req struct {
		Operator string `json:"operator"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	operator := strings.ToUpper(strings.TrimSpace(req.Operator))
	if operator == "" {
		RespondError(w, r, http.StatusBadRequest, "balance/operator-required", "operator is required")
		return
	}

	job, err := h.svc.Request(r.Context(), ownerID, operator)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, balanceInquiryResponse{
		JobID:     job.JobID,
		Operator:  job.Operator,
		Status:    job.Status,
		ExpiresAt: job.ExpiresAt,
	})
}

// Cancel drops the caller's pending inquiry. It succeeds whether or not one existed.
func (h *BalanceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-actor", err.Error())
		return
	}
	h.svc.Cancel(ownerID)
	w.WriteHeader(http.StatusNoContent)
}
