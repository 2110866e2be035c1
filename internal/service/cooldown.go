package service

import (
	"errors"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
)

var ErrDuplicateRecipient = errors.New("a transfer to this recipient was submitted recently")

// CooldownPolicy spaces one owner's transfers and blocks repeated transfers to the same recipient.
type CooldownPolicy struct {
	Spacing         time.Duration
	DuplicateWindow time.Duration
}

// CooldownDecision is the initial state of an accepted transfer.
type CooldownDecision struct {
	Status       string
	ExecuteAfter time.Time
}

func DefaultCooldownPolicy() CooldownPolicy {
	return CooldownPolicy{
		Spacing:         domain.DefaultCooldownSpacing,
		DuplicateWindow: domain.DefaultDuplicateWindow,
	}
}

// Evaluate decides whether a transfer submitted at now is blocked, delayed or immediately eligible.
// The spacing reference is the owner's most recently created transfer whatever its status.
func (p CooldownPolicy) Evaluate(now time.Time, history models.TransferHistory) (CooldownDecision, error) {
	if history.RecentToSameRecipient {
		return CooldownDecision{}, ErrDuplicateRecipient
	}
	if history.LastCreatedAt != nil {
		eligibleAt := history.LastCreatedAt.Add(p.Spacing)
		if now.Before(eligibleAt) {
			return CooldownDecision{Status: domain.TransferStatusDelayed, ExecuteAfter: eligibleAt}, nil
		}
	}
	return CooldownDecision{Status: domain.TransferStatusPending, ExecuteAfter: now}, nil
}

// RecipientWindowStart is the creation time after which a transfer to the same recipient blocks a new one.
func (p CooldownPolicy) RecipientWindowStart(now time.Time) time.Time {
	return now.Add(-p.DuplicateWindow)
}
