package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ayo6706/ussd-relay/internal/api/middleware"
	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Dispatcher hands transfer work to devices and records their results.
type Dispatcher interface {
	PollForWork(ctx context.Context, deviceID string) (*models.TransferJob, error)
	ReportResult(ctx context.Context, id int64, status, carrierResponse string) (*models.TransferRequest, error)
}

// BalanceExecutor is the device-facing side of balance inquiries.
type BalanceExecutor interface {
	ClaimForOwner(ownerID uuid.UUID) (*models.BalanceJob, bool)
	ClaimNext() (*models.BalanceJob, bool)
	Report(ctx context.Context, ownerID uuid.UUID, outcome models.BalanceOutcome) (*models.BalanceJob, error)
}

type DeviceHandler struct {
	dispatcher Dispatcher
	balances   BalanceExecutor
}

func NewDeviceHandler(dispatcher Dispatcher, balances BalanceExecutor) *DeviceHandler {
	return &DeviceHandler{dispatcher: dispatcher, balances: balances}
}

// ClaimTransfer returns the next transfer job, or 204 when there is none.
func (h *DeviceHandler) ClaimTransfer(w http.ResponseWriter, r *http.Request) {
	job, err := h.dispatcher.PollForWork(r.Context(), middleware.DeviceIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}

type transferResultRequest struct {
	Status          string `json:"status"`
	CarrierResponse string `json:"carrier_response"`
}

func (h *DeviceHandler) ReportTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(w, r, http.StatusBadRequest, "transfer/invalid-id", "invalid transfer id")
		return
	}
	var req transferResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.dispatcher.ReportResult(r.Context(), id, req.Status, req.CarrierResponse)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, t)
}

func (h *DeviceHandler) ClaimNextBalance(w http.ResponseWriter, r *http.Request) {
	job, ok := h.balances.ClaimNext()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}

func (h *DeviceHandler) ClaimOwnerBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}
	job, found := h.balances.ClaimForOwner(ownerID)
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}

type balanceResultRequest struct {
	Success bool    `json:"success"`
	Detail  string  `json:"detail"`
	Balance *string `json:"balance"`
}

func (h *DeviceHandler) ReportBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req balanceResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome := models.BalanceOutcome{Success: req.Success, Detail: req.Detail}
	if req.Balance != nil {
		balance, err := domain.ParseBalance(*req.Balance)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		outcome.Balance = &balance
	}

	job, err := h.balances.Report(r.Context(), ownerID, outcome)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}

func ownerParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "balance/invalid-owner", "invalid owner id")
		return uuid.Nil, false
	}
	return ownerID, true
}
