// Package notify delivers job outcomes to the owner's chat channel.
//
// Delivery is best effort. Callers log failures and never roll back a
// state change because a notification could not be sent.
package notify

import (
	"context"
	"time"
)

const (
	KindTransferOutcome = "transfer_outcome"
	KindBalanceOutcome  = "balance_outcome"
)

// Notifier is the outbound port for outcome messages.
type Notifier interface {
	NotifyTransferOutcome(ctx context.Context, ownerHandle string, transferID int64, status, reason string) error
	NotifyBalanceOutcome(ctx context.Context, ownerHandle, status, detail string) error
}

// Event is the payload published for every outcome.
type Event struct {
	Kind        string    `json:"kind"`
	OwnerHandle string    `json:"owner_handle"`
	TransferID  int64     `json:"transfer_id,omitempty"`
	Status      string    `json:"status"`
	Detail      string    `json:"detail,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
