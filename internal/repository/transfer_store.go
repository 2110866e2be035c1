package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransferStore is the PostgreSQL implementation of the transfer ledger.
// Every state transition is written to audit_log in the same transaction.
type TransferStore struct {
	store *Store
}

func NewTransferStore(store *Store) *TransferStore {
	return &TransferStore{store: store}
}

// OwnerScope exposes the reads and the insert needed to create a transfer while the owner lock is held.
type OwnerScope interface {
	LatestTransferCreatedAt(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)
	HasTransferToRecipientSince(ctx context.Context, ownerID uuid.UUID, recipient string, since time.Time) (bool, error)
	InsertTransfer(ctx context.Context, req *models.TransferRequest) error
}

type ownerTx struct {
	q *Queries
}

func (t *ownerTx) LatestTransferCreatedAt(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	createdAt, err := t.q.GetLatestTransferCreatedAt(ctx, ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest transfer: %w", err)
	}
	return &createdAt, nil
}

func (t *ownerTx) HasTransferToRecipientSince(ctx context.Context, ownerID uuid.UUID, recipient string, since time.Time) (bool, error) {
	exists, err := t.q.HasTransferToRecipientSince(ctx, HasTransferToRecipientSinceParams{
		OwnerID:        ownerID,
		RecipientPhone: recipient,
		Since:          since,
	})
	if err != nil {
		return false, fmt.Errorf("check recent recipient transfer: %w", err)
	}
	return exists, nil
}

func (t *ownerTx) InsertTransfer(ctx context.Context, req *models.TransferRequest) error {
	created, err := t.q.InsertTransferRequest(ctx, InsertTransferRequestParams{
		OwnerID:        req.OwnerID,
		RecipientPhone: req.RecipientPhone,
		Amount:         req.Amount,
		OperatorCode:   req.OperatorCode,
		Status:         req.Status,
		ExecuteAfter:   req.ExecuteAfter,
		CreatedAt:      req.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert transfer request: %w", err)
	}
	if err := writeAudit(ctx, t.q, []int64{created.ID}, "created", "", created.Status, nil); err != nil {
		return err
	}
	*req = created
	return nil
}

// WithOwnerLock runs fn in a transaction holding an advisory lock scoped to ownerID.
func (s *TransferStore) WithOwnerLock(ctx context.Context, ownerID uuid.UUID, fn func(tx OwnerScope) error) error {
	return s.store.RunInTx(ctx, func(q *Queries) error {
		if err := q.LockOwnerTransfers(ctx, ownerID); err != nil {
			return fmt.Errorf("lock owner transfers: %w", err)
		}
		return fn(&ownerTx{q: q})
	})
}

func (s *TransferStore) PromoteDue(ctx context.Context, now time.Time) (int64, error) {
	var promoted []int64
	err := s.store.RunInTx(ctx, func(q *Queries) error {
		var err error
		promoted, err = q.PromoteDueTransfers(ctx, now)
		if err != nil {
			return fmt.Errorf("promote due transfers: %w", err)
		}
		return writeAudit(ctx, q, promoted, "promoted", domain.TransferStatusDelayed, domain.TransferStatusPending, nil)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(promoted)), nil
}

// ClaimOldestPending returns nil when no pending transfer is available to this caller.
func (s *TransferStore) ClaimOldestPending(ctx context.Context, now time.Time, deviceID string) (*models.TransferRequest, error) {
	var claimed *models.TransferRequest
	err := s.store.RunInTx(ctx, func(q *Queries) error {
		row, err := q.ClaimOldestPendingTransfer(ctx, ClaimOldestPendingTransferParams{Now: now, ClaimedBy: deviceID})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim oldest pending transfer: %w", err)
		}
		meta, _ := json.Marshal(map[string]string{"device_id": deviceID})
		if err := writeAudit(ctx, q, []int64{row.ID}, "claimed", domain.TransferStatusPending, domain.TransferStatusProcessing, meta); err != nil {
			return err
		}
		claimed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteProcessing moves a processing transfer to status. It returns nil when the
// row exists but is not processing.
func (s *TransferStore) CompleteProcessing(ctx context.Context, id int64, status, carrierResponse string, now time.Time) (*models.TransferRequest, error) {
	var completed *models.TransferRequest
	err := s.store.RunInTx(ctx, func(q *Queries) error {
		row, err := q.CompleteTransferRequest(ctx, CompleteTransferRequestParams{
			ID:              id,
			Status:          status,
			CarrierResponse: carrierResponse,
			Now:             now,
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("complete transfer request: %w", err)
		}
		meta, _ := json.Marshal(map[string]string{"carrier_response": carrierResponse})
		if err := writeAudit(ctx, q, []int64{row.ID}, "completed", domain.TransferStatusProcessing, status, meta); err != nil {
			return err
		}
		completed = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *TransferStore) GetTransfer(ctx context.Context, id int64) (*models.TransferRequest, error) {
	row, err := s.store.Queries().GetTransferRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", notFound(err))
	}
	return &row, nil
}

func (s *TransferStore) ListTransfersByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int32) ([]models.TransferRequest, error) {
	rows, err := s.store.Queries().ListTransferRequestsByOwner(ctx, ListTransferRequestsByOwnerParams{
		OwnerID: ownerID,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	return rows, nil
}

// FailStaleProcessing fails every processing transfer last touched at or before cutoff
// and returns the rows it changed.
func (s *TransferStore) FailStaleProcessing(ctx context.Context, cutoff time.Time, reason string, now time.Time) ([]models.TransferRequest, error) {
	var failed []models.TransferRequest
	err := s.store.RunInTx(ctx, func(q *Queries) error {
		var err error
		failed, err = q.FailStaleProcessingTransfers(ctx, FailStaleProcessingTransfersParams{
			UpdatedBefore:   cutoff,
			CarrierResponse: reason,
			Now:             now,
		})
		if err != nil {
			return fmt.Errorf("fail stale processing transfers: %w", err)
		}
		ids := make([]int64, 0, len(failed))
		for _, t := range failed {
			ids = append(ids, t.ID)
		}
		meta, _ := json.Marshal(map[string]string{"reason": reason})
		return writeAudit(ctx, q, ids, "reaped", domain.TransferStatusProcessing, domain.TransferStatusFailed, meta)
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *TransferStore) CountByStatus(ctx context.Context) (models.QueueSnapshot, error) {
	rows, err := s.store.Queries().CountTransferRequestsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count transfer requests: %w", err)
	}
	snapshot := models.QueueSnapshot{}
	for _, r := range rows {
		snapshot[r.Status] = r.Count
	}
	return snapshot, nil
}

func writeAudit(ctx context.Context, q *Queries, ids []int64, action, prev, next string, metadata []byte) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := q.InsertTransferAudit(ctx, InsertTransferAuditParams{
		TransferIDs: ids,
		Action:      action,
		PrevState:   textParam(prev),
		NextState:   textParam(next),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	if rows != int64(len(ids)) {
		return fmt.Errorf("insert audit log affected %d rows, want %d", rows, len(ids))
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
