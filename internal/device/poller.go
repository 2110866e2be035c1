package device

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Relay is the subset of the relay API the poller drives.
type Relay interface {
	ClaimTransfer(ctx context.Context) (*models.TransferJob, error)
	ReportTransfer(ctx context.Context, id int64, status, carrierResponse string) error
	ClaimBalance(ctx context.Context) (*models.BalanceJob, error)
	ReportBalance(ctx context.Context, ownerID uuid.UUID, report BalanceReport) error
}

// Poller claims work from the relay, runs it on the carrier and reports the outcome.
// Balance inquiries are served before transfers since the user is waiting on them.
type Poller struct {
	relay   Relay
	carrier Carrier
	limiter *rate.Limiter
}

// NewPoller paces claims to one per interval, with a burst of one.
func NewPoller(relay Relay, carrier Carrier, interval time.Duration) *Poller {
	return &Poller{
		relay:   relay,
		carrier: carrier,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	zap.L().Info("device poller starting", zap.Float64("rate_per_second", float64(p.limiter.Limit())))
	for {
		// Wait only fails once ctx is done or its deadline is closer than the next token.
		if err := p.limiter.Wait(ctx); err != nil {
			zap.L().Info("device poller stopped", zap.Error(err))
			return nil
		}
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Warn("device poll failed", zap.Error(err))
		}
	}
}

// PollOnce handles at most one balance inquiry and one transfer. It reports whether any work was done.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	didBalance, balanceErr := p.handleBalance(ctx)
	didTransfer, transferErr := p.handleTransfer(ctx)
	return didBalance || didTransfer, errors.Join(balanceErr, transferErr)
}

func (p *Poller) handleTransfer(ctx context.Context) (bool, error) {
	job, err := p.relay.ClaimTransfer(ctx)
	if err != nil || job == nil {
		return false, err
	}
	logger := zap.L().With(zap.Int64("transfer_id", job.ID), zap.String("operator", job.OperatorCode))
	logger.Info("transfer claimed")

	status := domain.TransferStatusSuccess
	text, err := p.carrier.Transfer(ctx, *job)
	if err != nil {
		status = domain.TransferStatusFailed
		if text == "" {
			text = err.Error()
		}
		logger.Warn("carrier transfer failed", zap.Error(err))
	}
	if err := p.relay.ReportTransfer(ctx, job.ID, status, text); err != nil {
		return true, err
	}
	logger.Info("transfer reported", zap.String("status", status))
	return true, nil
}

func (p *Poller) handleBalance(ctx context.Context) (bool, error) {
	job, err := p.relay.ClaimBalance(ctx)
	if err != nil || job == nil {
		return false, err
	}
	logger := zap.L().With(zap.String("job_id", job.JobID), zap.String("owner_id", job.OwnerID.String()))
	logger.Info("balance inquiry claimed")

	report := BalanceReport{Success: true}
	text, err := p.carrier.Balance(ctx, job.Operator)
	if err != nil {
		report = BalanceReport{Success: false, Detail: err.Error()}
		logger.Warn("carrier balance failed", zap.Error(err))
	} else {
		report.Balance = &text
	}

	// A 404 means the inquiry already timed out or was cancelled.
	var apiErr *APIError
	if err := p.relay.ReportBalance(ctx, job.OwnerID, report); err != nil {
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			logger.Info("balance inquiry no longer waiting")
			return true, nil
		}
		return true, err
	}
	return true, nil
}
