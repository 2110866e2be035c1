package service

import (
	"context"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/repository"
	"github.com/google/uuid"
)

// LedgerStore defines the persistence contract of the transfer ledger.
// Implementations must make ClaimOldestPending and CompleteProcessing conditional on the
// current status so that concurrent callers never both win the same row.
type LedgerStore interface {
	WithOwnerLock(ctx context.Context, ownerID uuid.UUID, fn func(tx repository.OwnerScope) error) error
	PromoteDue(ctx context.Context, now time.Time) (int64, error)
	ClaimOldestPending(ctx context.Context, now time.Time, deviceID string) (*models.TransferRequest, error)
	CompleteProcessing(ctx context.Context, id int64, status, carrierResponse string, now time.Time) (*models.TransferRequest, error)
	GetTransfer(ctx context.Context, id int64) (*models.TransferRequest, error)
	ListTransfersByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int32) ([]models.TransferRequest, error)
	FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string, now time.Time) ([]models.TransferRequest, error)
	CountByStatus(ctx context.Context) (models.QueueSnapshot, error)
}

// UserDirectory resolves owners to the handle notifications are addressed to.
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PrefixSource lists the active operator prefixes.
type PrefixSource interface {
	ActiveOperatorPrefixes(ctx context.Context) ([]models.OperatorPrefix, error)
}
