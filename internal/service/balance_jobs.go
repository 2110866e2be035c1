package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/notify"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type balanceEntry struct {
	job   models.BalanceJob
	timer *time.Timer
}

// BalanceJobCoordinator holds at most one balance inquiry per owner in memory.
// Every entry owns exactly one expiry timer which is stopped whenever the entry
// leaves the map. A timer that fires after its entry was replaced does nothing.
type BalanceJobCoordinator struct {
	ttl      time.Duration
	notifier notify.Notifier
	now      func() time.Time

	mu   sync.Mutex
	jobs map[uuid.UUID]*balanceEntry
}

func NewBalanceJobCoordinator(ttl time.Duration, notifier notify.Notifier) *BalanceJobCoordinator {
	if ttl <= 0 {
		ttl = domain.DefaultBalanceJobTTL
	}
	return &BalanceJobCoordinator{
		ttl:      ttl,
		notifier: notifier,
		now:      time.Now,
		jobs:     make(map[uuid.UUID]*balanceEntry),
	}
}

// Create registers a pending inquiry for owner, replacing any job the owner already had.
// The replaced job is dropped without a timeout notification.
func (c *BalanceJobCoordinator) Create(ownerID uuid.UUID, ownerHandle, operator string) models.BalanceJob {
	now := c.now()
	e := &balanceEntry{job: models.BalanceJob{
		JobID:       fmt.Sprintf("%d-%s", now.UnixMilli(), ownerID),
		OwnerID:     ownerID,
		OwnerHandle: ownerHandle,
		Operator:    operator,
		Status:      domain.BalanceStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}}

	c.mu.Lock()
	if prev, ok := c.jobs[ownerID]; ok {
		prev.timer.Stop()
		observability.IncrementBalanceJob("replaced")
		zap.L().Info("balance job replaced", zap.String("owner_id", ownerID.String()), zap.String("job_id", prev.job.JobID))
	}
	e.timer = time.AfterFunc(c.ttl, func() { c.expire(ownerID, e) })
	c.jobs[ownerID] = e
	size := len(c.jobs)
	c.mu.Unlock()

	observability.SetBalanceJobsInFlight(size)
	return e.job
}

// PollOne hands owner's pending job to the device and marks it processing.
// Jobs already processing are not handed out twice.
func (c *BalanceJobCoordinator) PollOne(ownerID uuid.UUID) (*models.BalanceJob, bool) {
	c.mu.Lock()
	e, ok := c.jobs[ownerID]
	if !ok {
		c.mu.Unlock()
		return nil, false
	}
	if c.expiredLocked(e) {
		c.removeLocked(ownerID)
		c.mu.Unlock()
		c.notifyTimeout(e.job)
		return nil, false
	}
	if e.job.Status != domain.BalanceStatusPending {
		c.mu.Unlock()
		return nil, false
	}
	e.job.Status = domain.BalanceStatusProcessing
	job := e.job
	c.mu.Unlock()
	return &job, true
}

// PollNext claims the oldest pending job of any owner.
func (c *BalanceJobCoordinator) PollNext() (*models.BalanceJob, bool) {
	var expired []models.BalanceJob

	c.mu.Lock()
	candidates := make([]*balanceEntry, 0, len(c.jobs))
	for ownerID, e := range c.jobs {
		if c.expiredLocked(e) {
			c.removeLocked(ownerID)
			expired = append(expired, e.job)
			continue
		}
		if e.job.Status == domain.BalanceStatusPending {
			candidates = append(candidates, e)
		}
	}
	var claimed *models.BalanceJob
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].job.CreatedAt.Before(candidates[j].job.CreatedAt)
		})
		candidates[0].job.Status = domain.BalanceStatusProcessing
		job := candidates[0].job
		claimed = &job
	}
	c.mu.Unlock()

	for _, job := range expired {
		c.notifyTimeout(job)
	}
	return claimed, claimed != nil
}

// Complete removes owner's job so a result can be reported. It returns false when the job
// is gone, including when it already timed out.
func (c *BalanceJobCoordinator) Complete(ownerID uuid.UUID) (*models.BalanceJob, bool) {
	c.mu.Lock()
	e, ok := c.jobs[ownerID]
	if ok {
		c.removeLocked(ownerID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	job := e.job
	job.Status = domain.BalanceStatusCompleted
	return &job, true
}

// Cancel drops owner's job without notifying. It returns whether a job existed.
func (c *BalanceJobCoordinator) Cancel(ownerID uuid.UUID) bool {
	c.mu.Lock()
	_, ok := c.jobs[ownerID]
	if ok {
		c.removeLocked(ownerID)
	}
	c.mu.Unlock()
	if ok {
		observability.IncrementBalanceJob("cancelled")
	}
	return ok
}

// Len returns the number of jobs in flight.
func (c *BalanceJobCoordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Stop cancels every timer. Pending jobs are discarded.
func (c *BalanceJobCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ownerID := range c.jobs {
		c.removeLocked(ownerID)
	}
}

func (c *BalanceJobCoordinator) expire(ownerID uuid.UUID, e *balanceEntry) {
	c.mu.Lock()
	if c.jobs[ownerID] != e {
		c.mu.Unlock()
		return
	}
	c.removeLocked(ownerID)
	c.mu.Unlock()
	c.notifyTimeout(e.job)
}

func (c *BalanceJobCoordinator) expiredLocked(e *balanceEntry) bool {
	return !c.now().Before(e.job.ExpiresAt)
}

func (c *BalanceJobCoordinator) removeLocked(ownerID uuid.UUID) {
	if e, ok := c.jobs[ownerID]; ok {
		e.timer.Stop()
		delete(c.jobs, ownerID)
	}
	observability.SetBalanceJobsInFlight(len(c.jobs))
}

func (c *BalanceJobCoordinator) notifyTimeout(job models.BalanceJob) {
	observability.IncrementBalanceJob(domain.BalanceOutcomeTimeout)
	zap.L().Warn("balance job timed out", zap.String("job_id", job.JobID), zap.String("owner_id", job.OwnerID.String()))

	ctx, cancel := notifyContext()
	defer cancel()
	sendBalanceNotification(ctx, c.notifier, job.OwnerHandle, domain.BalanceOutcomeTimeout, domain.ReasonBalanceTimedOut)
}

func sendBalanceNotification(ctx context.Context, n notify.Notifier, handle, status, detail string) {
	if err := n.NotifyBalanceOutcome(ctx, handle, status, detail); err != nil {
		observability.IncrementNotification(notify.KindBalanceOutcome, "error")
		zap.L().Warn("balance notification failed", zap.String("status", status), zap.Error(err))
		return
	}
	observability.IncrementNotification(notify.KindBalanceOutcome, "sent")
}
