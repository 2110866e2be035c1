package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/ussd-relay/internal/models"
)

type QueueReporter interface {
	Snapshot(ctx context.Context) (models.QueueSnapshot, error)
}

type AdminHandler struct {
	queue QueueReporter
}

func NewAdminHandler(queue QueueReporter) *AdminHandler {
	return &AdminHandler{queue: queue}
}

func (h *AdminHandler) Queue(w http.ResponseWriter, r *http.Request) {
	snap, err := h.queue.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"counts": snap})
}
