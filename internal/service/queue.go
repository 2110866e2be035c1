package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/observability"
)

var queueStatuses = []string{
	domain.TransferStatusDelayed,
	domain.TransferStatusPending,
	domain.TransferStatusProcessing,
	domain.TransferStatusSuccess,
	domain.TransferStatusFailed,
}

// QueueService reports how many transfers sit in each status.
type QueueService struct {
	ledger LedgerStore
}

func NewQueueService(ledger LedgerStore) *QueueService {
	return &QueueService{ledger: ledger}
}

// Snapshot returns a count for every status, zero included, and refreshes the queue gauges.
func (s *QueueService) Snapshot(ctx context.Context) (models.QueueSnapshot, error) {
	counts, err := s.ledger.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count transfers by status: %w", err)
	}
	out := make(models.QueueSnapshot, len(queueStatuses))
	for _, status := range queueStatuses {
		out[status] = counts[status]
		observability.SetQueueDepth(status, counts[status])
	}
	return out, nil
}
