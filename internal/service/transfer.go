package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/notify"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"github.com/ayo6706/ussd-relay/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTransferNotFound      = errors.New("transfer not found")
	ErrTransferNotProcessing = errors.New("transfer is not processing")
	ErrInvalidResultStatus   = errors.New("result status must be success or failed")
	ErrForbidden             = errors.New("transfer belongs to another owner")
)

// RecipientResolver maps a normalized phone number to its operator.
type RecipientResolver interface {
	Resolve(ctx context.Context, phone string) (string, error)
}

// TransferConfig holds the submission rules.
type TransferConfig struct {
	MaxAmount int64
	Cooldown  CooldownPolicy
}

// SubmitTransferInput is an owner's request to send airtime.
type SubmitTransferInput struct {
	OwnerID        uuid.UUID
	RecipientPhone string
	Amount         int64
}

// TransferService owns the transfer lifecycle from submission to outcome notification.
type TransferService struct {
	ledger    LedgerStore
	users     UserDirectory
	operators RecipientResolver
	notifier  notify.Notifier
	cfg       TransferConfig
	now       func() time.Time
}

func NewTransferService(ledger LedgerStore, users UserDirectory, operators RecipientResolver, notifier notify.Notifier, cfg TransferConfig) *TransferService {
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = domain.DefaultMaxTransferAmount
	}
	if cfg.Cooldown.Spacing <= 0 && cfg.Cooldown.DuplicateWindow <= 0 {
		cfg.Cooldown = DefaultCooldownPolicy()
	}
	return &TransferService{
		ledger:    ledger,
		users:     users,
		operators: operators,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates and persists a transfer. The cooldown read and the insert run under the
// owner's lock so two concurrent submissions cannot both miss each other.
func (s *TransferService) Submit(ctx context.Context, in SubmitTransferInput) (*models.TransferRequest, error) {
	if err := domain.ValidateAmount(in.Amount, s.cfg.MaxAmount); err != nil {
		return nil, err
	}
	phone, err := domain.NormalizePhone(in.RecipientPhone)
	if err != nil {
		return nil, err
	}
	operator, err := s.operators.Resolve(ctx, phone)
	if err != nil {
		return nil, err
	}

	var created *models.TransferRequest
	err = s.ledger.WithOwnerLock(ctx, in.OwnerID, func(tx repository.OwnerScope) error {
		now := s.now()
		last, err := tx.LatestTransferCreatedAt(ctx, in.OwnerID)
		if err != nil {
			return err
		}
		recent, err := tx.HasTransferToRecipientSince(ctx, in.OwnerID, phone, s.cfg.Cooldown.RecipientWindowStart(now))
		if err != nil {
			return err
		}
		decision, err := s.cfg.Cooldown.Evaluate(now, models.TransferHistory{
			LastCreatedAt:         last,
			RecentToSameRecipient: recent,
		})
		if err != nil {
			return err
		}

		req := &models.TransferRequest{
			OwnerID:        in.OwnerID,
			RecipientPhone: phone,
			Amount:         in.Amount,
			OperatorCode:   operator,
			Status:         decision.Status,
			ExecuteAfter:   decision.ExecuteAfter,
			CreatedAt:      now,
		}
		if err := tx.InsertTransfer(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("transfer accepted",
		zap.Int64("transfer_id", created.ID),
		zap.String("owner_id", created.OwnerID.String()),
		zap.String("operator", created.OperatorCode),
		zap.String("status", created.Status),
		zap.Time("execute_after", created.ExecuteAfter),
	)
	return created, nil
}

// Get returns a transfer visible to the caller. Admins see every transfer.
func (s *TransferService) Get(ctx context.Context, callerID uuid.UUID, callerRole string, id int64) (*models.TransferRequest, error) {
	t, err := s.ledger.GetTransfer(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleAdmin && t.OwnerID != callerID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *TransferService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int32) ([]models.TransferRequest, error) {
	limit, offset = clampPage(limit, offset)
	return s.ledger.ListTransfersByOwner(ctx, ownerID, limit, offset)
}

// PromoteDue moves every delayed transfer whose execute-after time has passed to pending.
func (s *TransferService) PromoteDue(ctx context.Context) (int64, error) {
	n, err := s.ledger.PromoteDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	observability.AddTransferTransitions(domain.TransferStatusDelayed, domain.TransferStatusPending, int(n))
	return n, nil
}

// ClaimNext atomically moves the oldest pending transfer to processing.
// It returns nil when nothing is pending.
func (s *TransferService) ClaimNext(ctx context.Context, deviceID string) (*models.TransferJob, error) {
	t, err := s.ledger.ClaimOldestPending(ctx, s.now(), deviceID)
	if err != nil {
		observability.IncrementClaim("error")
		return nil, err
	}
	if t == nil {
		observability.IncrementClaim("empty")
		return nil, nil
	}
	observability.IncrementClaim("claimed")
	observability.IncrementTransferTransition(domain.TransferStatusPending, domain.TransferStatusProcessing)
	zap.L().Info("transfer claimed", zap.Int64("transfer_id", t.ID), zap.String("device_id", deviceID))
	return &models.TransferJob{
		ID:             t.ID,
		RecipientPhone: t.RecipientPhone,
		Amount:         t.Amount,
		OperatorCode:   t.OperatorCode,
	}, nil
}

// SubmitResult records the device's outcome for a processing transfer and notifies the owner.
func (s *TransferService) SubmitResult(ctx context.Context, id int64, status, carrierResponse string) (*models.TransferRequest, error) {
	if !isResultStatus(status) {
		return nil, ErrInvalidResultStatus
	}

	t, err := s.ledger.CompleteProcessing(ctx, id, status, carrierResponse, s.now())
	if err != nil {
		return nil, err
	}
	if t == nil {
		existing, err := s.ledger.GetTransfer(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrTransferNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: current status %s", ErrTransferNotProcessing, existing.Status)
	}

	observability.IncrementTransferTransition(domain.TransferStatusProcessing, status)
	zap.L().Info("transfer completed", zap.Int64("transfer_id", t.ID), zap.String("status", status))
	s.notifyOutcome(t.OwnerID, t.ID, status, carrierResponse)
	return t, nil
}

// notifyOutcome is best effort. The transition has already been committed.
func (s *TransferService) notifyOutcome(ownerID uuid.UUID, transferID int64, status, reason string) {
	ctx, cancel := notifyContext()
	defer cancel()

	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		observability.IncrementNotification(notify.KindTransferOutcome, "error")
		zap.L().Warn("notification skipped, owner lookup failed",
			zap.Int64("transfer_id", transferID), zap.String("owner_id", ownerID.String()), zap.Error(err))
		return
	}
	if err := s.notifier.NotifyTransferOutcome(ctx, user.ChatHandle, transferID, status, reason); err != nil {
		observability.IncrementNotification(notify.KindTransferOutcome, "error")
		zap.L().Warn("transfer notification failed", zap.Int64("transfer_id", transferID), zap.Error(err))
		return
	}
	observability.IncrementNotification(notify.KindTransferOutcome, "sent")
}
