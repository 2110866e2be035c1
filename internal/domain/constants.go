package domain

import "time"

// Transfer statuses. success and failed are terminal.
const (
	TransferStatusPending    = "pending"
	TransferStatusDelayed    = "delayed"
	TransferStatusProcessing = "processing"
	TransferStatusSuccess    = "success"
	TransferStatusFailed     = "failed"
)

// Balance job statuses. A job leaves the coordinator instead of reaching a terminal status.
const (
	BalanceStatusPending    = "pending"
	BalanceStatusProcessing = "processing"
	BalanceStatusCompleted  = "completed"
)

// Outcomes reported to the notification port for balance inquiries.
const (
	BalanceOutcomeSuccess = "success"
	BalanceOutcomeFailed  = "failed"
	BalanceOutcomeTimeout = "timeout"
)

const (
	// DefaultCooldownSpacing is the minimum gap between two transfers of the same owner.
	DefaultCooldownSpacing = 20 * time.Second
	// DefaultDuplicateWindow blocks a repeat transfer to the same recipient.
	DefaultDuplicateWindow = 5 * time.Minute
	// DefaultStaleProcessingTimeout is how long a claimed job may stay in processing.
	DefaultStaleProcessingTimeout = 5 * time.Minute
	// DefaultBalanceJobTTL bounds the life of an unanswered balance inquiry.
	DefaultBalanceJobTTL = 60 * time.Second
	// DefaultMaxTransferAmount is the upper bound of a single transfer.
	DefaultMaxTransferAmount int64 = 1_000_000
)

const (
	ReasonExecutionTimedOut = "execution timed out"
	ReasonBalanceTimedOut   = "balance inquiry timed out"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// IsTerminalTransferStatus reports whether no further transition is allowed from status.
func IsTerminalTransferStatus(status string) bool {
	return status == TransferStatusSuccess || status == TransferStatusFailed
}
