package service

import (
	"context"

	"github.com/ayo6706/ussd-relay/internal/models"
	"go.uber.org/zap"
)

// JobDispatcher is the device-facing entry point: it promotes due work and hands out claims.
type JobDispatcher struct {
	transfers *TransferService
}

func NewJobDispatcher(transfers *TransferService) *JobDispatcher {
	return &JobDispatcher{transfers: transfers}
}

// PollForWork promotes due delayed transfers and then claims the oldest pending one.
// A promotion failure does not prevent claiming work that is already pending.
func (d *JobDispatcher) PollForWork(ctx context.Context, deviceID string) (*models.TransferJob, error) {
	if _, err := d.transfers.PromoteDue(ctx); err != nil {
		zap.L().Warn("promotion before claim failed", zap.String("device_id", deviceID), zap.Error(err))
	}
	return d.transfers.ClaimNext(ctx, deviceID)
}

func (d *JobDispatcher) ReportResult(ctx context.Context, id int64, status, carrierResponse string) (*models.TransferRequest, error) {
	return d.transfers.SubmitResult(ctx, id, status, carrierResponse)
}
