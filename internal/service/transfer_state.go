package service

import "github.com/ayo6706/ussd-relay/internal/domain"

var transferTransitions = map[string]map[string]struct{}{
	domain.TransferStatusDelayed: {
		domain.TransferStatusPending: {},
	},
	domain.TransferStatusPending: {
		domain.TransferStatusProcessing: {},
	},
	domain.TransferStatusProcessing: {
		domain.TransferStatusSuccess: {},
		domain.TransferStatusFailed:  {},
	},
	domain.TransferStatusSuccess: {},
	domain.TransferStatusFailed:  {},
}

func canTransition(current, next string) bool {
	nextStates, ok := transferTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// isResultStatus reports whether a device may report status as the outcome of a claimed job.
func isResultStatus(status string) bool {
	return domain.IsTerminalTransferStatus(status) && canTransition(domain.TransferStatusProcessing, status)
}
