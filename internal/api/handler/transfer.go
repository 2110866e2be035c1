package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TransferService is the owner-facing transfer API.
type TransferService interface {
	Submit(ctx context.Context, in service.SubmitTransferInput) (*models.TransferRequest, error)
	Get(ctx context.Context, callerID uuid.UUID, callerRole string, id int64) (*models.TransferRequest, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int32) ([]models.TransferRequest, error)
}

type TransferHandler struct {
	svc TransferService
}

func NewTransferHandler(svc TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

type createTransferRequest struct {
	RecipientPhone string `json:"recipient_phone"`
	Amount         int64  `json:"amount"`
}

type createTransferResponse struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"`
	OperatorCode string    `json:"operator_code"`
	ExecuteAfter time.Time `json:"execute_after"`
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-actor", err.Error())
		return
	}
	var req createTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.svc.Submit(r.Context(), service.SubmitTransferInput{
		OwnerID:        ownerID,
		RecipientPhone: req.RecipientPhone,
		Amount:         req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, createTransferResponse{
		ID:           t.ID,
		Status:       t.Status,
		OperatorCode: t.OperatorCode,
		ExecuteAfter: t.ExecuteAfter,
	})
}

func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, role, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-actor", err.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-id", "invalid transfer id")
		return
	}

	t, err := h.svc.Get(r.Context(), callerID, role, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, t)
}

func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-actor", err.Error())
		return
	}
	limit := queryInt32(r, "limit", 20)
	offset := queryInt32(r, "offset", 0)

	transfers, err := h.svc.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []models.TransferRequest{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transfers": transfers,
		"limit":     limit,
		"offset":    offset,
	})
}
