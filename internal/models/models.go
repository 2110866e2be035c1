package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

type User struct {
	ID          uuid.UUID `json:"id"`
	ChatHandle  string    `json:"chat_handle"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransferRequest is a persisted transfer job. ExecuteAfter is fixed at creation.
type TransferRequest struct {
	ID              int64      `json:"id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	RecipientPhone  string     `json:"recipient_phone"`
	Amount          int64      `json:"amount"`
	OperatorCode    string     `json:"operator_code"`
	Status          string     `json:"status"`
	ExecuteAfter    time.Time  `json:"execute_after"`
	CarrierResponse *string    `json:"carrier_response,omitempty"`
	ClaimedBy       *string    `json:"claimed_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
}

// TransferJob is the subset of a claimed transfer the device needs to execute it.
type TransferJob struct {
	ID             int64  `json:"id"`
	RecipientPhone string `json:"recipient_phone"`
	Amount         int64  `json:"amount"`
	OperatorCode   string `json:"operator_code"`
}

// TransferHistory is what the cooldown policy needs to know about an owner's earlier transfers.
type TransferHistory struct {
	LastCreatedAt         *time.Time
	RecentToSameRecipient bool
}

// OperatorPrefix maps a leading digit sequence of a phone number to a carrier.
type OperatorPrefix struct {
	Prefix       string    `json:"prefix" yaml:"prefix"`
	OperatorCode string    `json:"operator_code" yaml:"operator"`
	Active       bool      `json:"active" yaml:"active"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

// BalanceJob is an in-memory balance inquiry. It is never persisted.
type BalanceJob struct {
	JobID       string    `json:"job_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OwnerHandle string    `json:"-"`
	Operator    string    `json:"operator"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BalanceOutcome is what the device reports after running a balance inquiry.
type BalanceOutcome struct {
	Success bool             `json:"success"`
	Detail  string           `json:"detail"`
	Balance *decimal.Decimal `json:"balance,omitempty"`
}

// QueueSnapshot counts transfer requests per status.
type QueueSnapshot map[string]int64
