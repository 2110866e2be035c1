package service

import (
	"context"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"go.uber.org/zap"
)

// StaleJobReaper fails transfers that stayed in processing longer than the timeout
// and notifies each owner.
type StaleJobReaper struct {
	transfers *TransferService
	timeout   time.Duration
}

func NewStaleJobReaper(transfers *TransferService, timeout time.Duration) *StaleJobReaper {
	if timeout <= 0 {
		timeout = domain.DefaultStaleProcessingTimeout
	}
	return &StaleJobReaper{transfers: transfers, timeout: timeout}
}

// Sweep fails every processing transfer last updated before now minus the timeout.
// It returns how many transfers were reaped.
func (r *StaleJobReaper) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-r.timeout)
	reaped, err := r.transfers.ledger.FailStaleProcessing(ctx, cutoff, domain.ReasonExecutionTimedOut, now)
	if err != nil {
		return 0, err
	}
	if len(reaped) == 0 {
		return 0, nil
	}

	observability.AddReaped(len(reaped))
	observability.AddTransferTransitions(domain.TransferStatusProcessing, domain.TransferStatusFailed, len(reaped))
	zap.L().Warn("stale processing transfers failed", zap.Int("count", len(reaped)), zap.Time("cutoff", cutoff))

	for _, t := range reaped {
		r.transfers.notifyOutcome(t.OwnerID, t.ID, domain.TransferStatusFailed, domain.ReasonExecutionTimedOut)
	}
	return len(reaped), nil
}
