package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBalanceJobNotFound = errors.New("balance job not found")
	ErrUserNotFound       = errors.New("user not found")
)

// OperatorCatalog reports whether an operator code is served.
type OperatorCatalog interface {
	KnownOperator(ctx context.Context, code string) bool
}

// BalanceService connects balance inquiries from owners to the device.
type BalanceService struct {
	jobs      *BalanceJobCoordinator
	users     UserDirectory
	operators OperatorCatalog
}

func NewBalanceService(jobs *BalanceJobCoordinator, users UserDirectory, operators OperatorCatalog) *BalanceService {
	return &BalanceService{jobs: jobs, users: users, operators: operators}
}

// Request creates or replaces the owner's balance inquiry for operator.
func (s *BalanceService) Request(ctx context.Context, ownerID uuid.UUID, operator string) (models.BalanceJob, error) {
	if !s.operators.KnownOperator(ctx, operator) {
		return models.BalanceJob{}, fmt.Errorf("%w: %s", ErrUnknownOperator, operator)
	}
	user, err := s.users.GetUser(ctx, ownerID)
	if errors.Is(err, models.ErrNotFound) {
		return models.BalanceJob{}, ErrUserNotFound
	}
	if err != nil {
		return models.BalanceJob{}, err
	}
	job := s.jobs.Create(ownerID, user.ChatHandle, operator)
	zap.L().Info("balance inquiry queued", zap.String("job_id", job.JobID), zap.String("operator", operator))
	return job, nil
}

func (s *BalanceService) Cancel(ownerID uuid.UUID) bool {
	return s.jobs.Cancel(ownerID)
}

func (s *BalanceService) ClaimForOwner(ownerID uuid.UUID) (*models.BalanceJob, bool) {
	return s.jobs.PollOne(ownerID)
}

func (s *BalanceService) ClaimNext() (*models.BalanceJob, bool) {
	return s.jobs.PollNext()
}

// Report delivers the device's result to the owner. A job that already timed out
// yields ErrBalanceJobNotFound and no second notification.
func (s *BalanceService) Report(ctx context.Context, ownerID uuid.UUID, outcome models.BalanceOutcome) (*models.BalanceJob, error) {
	job, ok := s.jobs.Complete(ownerID)
	if !ok {
		return nil, ErrBalanceJobNotFound
	}

	status := domain.BalanceOutcomeFailed
	detail := outcome.Detail
	if outcome.Success {
		status = domain.BalanceOutcomeSuccess
		if outcome.Balance != nil {
			detail = domain.FormatBalance(*outcome.Balance)
		}
	}
	observability.IncrementBalanceJob(status)

	nctx, cancel := notifyContext()
	defer cancel()
	sendBalanceNotification(nctx, s.jobs.notifier, job.OwnerHandle, status, detail)
	return job, nil
}
