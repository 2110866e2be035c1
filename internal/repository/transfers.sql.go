package repository

import (
	"context"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, owner_id, recipient_phone, amount, operator_code, status, execute_after,
	carrier_response, claimed_by, created_at, updated_at, executed_at`

func scanTransfer(row pgx.Row) (models.TransferRequest, error) {
	var t models.TransferRequest
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.RecipientPhone,
		&t.Amount,
		&t.OperatorCode,
		&t.Status,
		&t.ExecuteAfter,
		&t.CarrierResponse,
		&t.ClaimedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.ExecutedAt,
	)
	return t, err
}

func collectTransfers(rows pgx.Rows) ([]models.TransferRequest, error) {
	defer rows.Close()
	var out []models.TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type InsertTransferRequestParams struct {
	OwnerID        uuid.UUID
	RecipientPhone string
	Amount         int64
	OperatorCode   string
	Status         string
	ExecuteAfter   time.Time
	CreatedAt      time.Time
}

const insertTransferRequest = `
INSERT INTO transfer_requests (owner_id, recipient_phone, amount, operator_code, status, execute_after, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
RETURNING ` + transferColumns

func (q *Queries) InsertTransferRequest(ctx context.Context, arg InsertTransferRequestParams) (models.TransferRequest, error) {
	return scanTransfer(q.db.QueryRow(ctx, insertTransferRequest,
		arg.OwnerID,
		arg.RecipientPhone,
		arg.Amount,
		arg.OperatorCode,
		arg.Status,
		arg.ExecuteAfter,
		arg.CreatedAt,
	))
}

// Serializes transfer creation per owner until the surrounding transaction ends.
const lockOwnerTransfers = `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

func (q *Queries) LockOwnerTransfers(ctx context.Context, ownerID uuid.UUID) error {
	_, err := q.db.Exec(ctx, lockOwnerTransfers, ownerID.String())
	return err
}

const getLatestTransferCreatedAt = `
SELECT created_at FROM transfer_requests
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetLatestTransferCreatedAt(ctx context.Context, ownerID uuid.UUID) (time.Time, error) {
	var createdAt time.Time
	err := q.db.QueryRow(ctx, getLatestTransferCreatedAt, ownerID).Scan(&createdAt)
	return createdAt, err
}

type HasTransferToRecipientSinceParams struct {
	OwnerID        uuid.UUID
	RecipientPhone string
	Since          time.Time
}

const hasTransferToRecipientSince = `
SELECT EXISTS (
	SELECT 1 FROM transfer_requests
	WHERE owner_id = $1 AND recipient_phone = $2 AND created_at > $3
)`

func (q *Queries) HasTransferToRecipientSince(ctx context.Context, arg HasTransferToRecipientSinceParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, hasTransferToRecipientSince, arg.OwnerID, arg.RecipientPhone, arg.Since).Scan(&exists)
	return exists, err
}

const promoteDueTransfers = `
UPDATE transfer_requests
SET status = 'pending', updated_at = $1
WHERE status = 'delayed' AND execute_after <= $1
RETURNING id`

func (q *Queries) PromoteDueTransfers(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := q.db.Query(ctx, promoteDueTransfers, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

type ClaimOldestPendingTransferParams struct {
	Now       time.Time
	ClaimedBy string
}

// The inner select skips rows another transaction already holds, and the outer
// predicate re-checks the status so a row can only flip out of pending once.
const claimOldestPendingTransfer = `
UPDATE transfer_requests
SET status = 'processing', claimed_by = $2, updated_at = $1
WHERE id = (
	SELECT id FROM transfer_requests
	WHERE status = 'pending'
	ORDER BY created_at ASC, id ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
AND status = 'pending'
RETURNING ` + transferColumns

func (q *Queries) ClaimOldestPendingTransfer(ctx context.Context, arg ClaimOldestPendingTransferParams) (models.TransferRequest, error) {
	return scanTransfer(q.db.QueryRow(ctx, claimOldestPendingTransfer, arg.Now, arg.ClaimedBy))
}

type CompleteTransferRequestParams struct {
	ID              int64
	Status          string
	CarrierResponse string
	Now             time.Time
}

const completeTransferRequest = `
UPDATE transfer_requests
SET status = $2, carrier_response = $3, executed_at = $4, updated_at = $4
WHERE id = $1 AND status = 'processing'
RETURNING ` + transferColumns

func (q *Queries) CompleteTransferRequest(ctx context.Context, arg CompleteTransferRequestParams) (models.TransferRequest, error) {
	return scanTransfer(q.db.QueryRow(ctx, completeTransferRequest, arg.ID, arg.Status, arg.CarrierResponse, arg.Now))
}

const getTransferRequest = `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1`

func (q *Queries) GetTransferRequest(ctx context.Context, id int64) (models.TransferRequest, error) {
	return scanTransfer(q.db.QueryRow(ctx, getTransferRequest, id))
}

type ListTransferRequestsByOwnerParams struct {
	OwnerID uuid.UUID
	Limit   int32
	Offset  int32
}

const listTransferRequestsByOwner = `
SELECT ` + transferColumns + ` FROM transfer_requests
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListTransferRequestsByOwner(ctx context.Context, arg ListTransferRequestsByOwnerParams) ([]models.TransferRequest, error) {
	rows, err := q.db.Query(ctx, listTransferRequestsByOwner, arg.OwnerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

type FailStaleProcessingTransfersParams struct {
	UpdatedBefore   time.Time
	CarrierResponse string
	Now             time.Time
}

const failStaleProcessingTransfers = `
UPDATE transfer_requests
SET status = 'failed', carrier_response = $2, executed_at = $3, updated_at = $3
WHERE status = 'processing' AND updated_at <= $1
RETURNING ` + transferColumns

func (q *Queries) FailStaleProcessingTransfers(ctx context.Context, arg FailStaleProcessingTransfersParams) ([]models.TransferRequest, error) {
	rows, err := q.db.Query(ctx, failStaleProcessingTransfers, arg.UpdatedBefore, arg.CarrierResponse, arg.Now)
	if err != nil {
		return nil, err
	}
	return collectTransfers(rows)
}

type CountTransferRequestsByStatusRow struct {
	Status string
	Count  int64
}

const countTransferRequestsByStatus = `SELECT status, COUNT(*) FROM transfer_requests GROUP BY status`

func (q *Queries) CountTransferRequestsByStatus(ctx context.Context) ([]CountTransferRequestsByStatusRow, error) {
	rows, err := q.db.Query(ctx, countTransferRequestsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CountTransferRequestsByStatusRow
	for rows.Next() {
		var r CountTransferRequestsByStatusRow
		if err := rows.Scan(&r.Status, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
