package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitCooldownScenario(t *testing.T) {
	f := newTransferFixture()
	t0 := f.clock.Now()

	first, err := f.submit(f.owner.ID, "0321234567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, first.Status)
	assert.True(t, t0.Equal(first.ExecuteAfter))
	assert.Equal(t, "ORANGE", first.OperatorCode)

	f.clock.Advance(5 * time.Second)
	second, err := f.submit(f.owner.ID, "0339876543", 500)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDelayed, second.Status)
	assert.True(t, t0.Add(20*time.Second).Equal(second.ExecuteAfter))

	f.clock.Advance(195 * time.Second)
	_, err = f.submit(f.owner.ID, "0321234567", 1000)
	assert.ErrorIs(t, err, ErrDuplicateRecipient)
	assert.Equal(t, 2, f.ledger.count())

	f.clock.Advance(101 * time.Second)
	third, err := f.submit(f.owner.ID, "+261 32 123 4567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, third.Status)
	assert.Equal(t, "0321234567", third.RecipientPhone)
}

func TestSubmitCooldownIsPerOwner(t *testing.T) {
	f := newTransferFixture()

	_, err := f.submit(f.owner.ID, "0321234567", 1000)
	require.NoError(t, err)

	other, err := f.submit(f.other.ID, "0321234567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, other.Status)
}

func TestSubmitChainedDelaysFollowLastCreatedAt(t *testing.T) {
	f := newTransferFixture()
	t0 := f.clock.Now()

	a, err := f.submit(f.owner.ID, "0321234567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusPending, a.Status)

	f.clock.Advance(time.Second)
	b, err := f.submit(f.owner.ID, "0331234567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDelayed, b.Status)
	assert.True(t, t0.Add(20*time.Second).Equal(b.ExecuteAfter))

	f.clock.Advance(time.Second)
	c, err := f.submit(f.owner.ID, "0341234567", 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDelayed, c.Status)
	assert.True(t, t0.Add(21*time.Second).Equal(c.ExecuteAfter))
}

func TestSubmitFailedPriorTransferStillSpacesNextOne(t *testing.T) {
	f := newTransferFixture()
	ctx := context.Background()

	first, err := f.submit(f.owner.ID, "0321234567", 1000)
	require.NoError(t, err)
	_, err = f.svc.ClaimNext(ctx, "dev-1")
	require.NoError(t, err)
	_, err = f.svc.SubmitResult(ctx, first.ID, domain.TransferStatusFailed, "insufficient credit")
	require.NoError(t, err)

	f.clock.Advance(3 * time.Second)
	next, err := f.submit(f.owner.ID, "0341234567", 200)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusDelayed, next.Status)
	assert.True(t, first.CreatedAt.Add(20*time.Second).Equal(next.ExecuteAfter))
}

func TestSubmitRejectsInvalidInputBeforePersisting(t *testing.T) {
	f := newTransferFixture()

	_, err := f.submit(f.owner.ID, "0321234567", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.submit(f.owner.ID, "0321234567", domain.DefaultMaxTransferAmount+1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.submit(f.owner.ID, "12345", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)

	_, err = f.submit(f.owner.ID, "0391234567", 100)
	assert.ErrorIs(t, err, ErrUnsupportedRecipient)

	assert.Zero(t, f.ledger.count())
}

func TestPollForWorkPromotesDueDelayedTransfer(t *testing.T) {
	f := newTransferFixture()
	d := NewJobDispatcher(f.svc)
	ctx := context.Background()

	first, err := f.submit(f.owner.ID, "0321234567", 1000)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Second)
	second, err := f.submit(f.owner.ID, "0331234567", 1000)
	require.NoError(t, err)
	require.Equal(t, domain.TransferStatusDelayed, second.Status)

	job, err := d.PollForWork(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first.ID, job.ID)

	job, err = d.PollForWork(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, job, "delayed transfer must not be claimable before its execute-after time")

	f.clock.Advance(15 * time.Second)
	job, err = d.PollForWork(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, second.ID, job.ID)
	assert.Equal(t, "AIRTEL", job.OperatorCode)
	assert.Equal(t, domain.TransferStatusProcessing, f.ledger.status(second.ID))
}

func TestPollForWorkHandsOutOldestPendingFirst(t *testing.T) {
	f := newTransferFixture()
	d := NewJobDispatcher(f.svc)

	a, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	b, err := f.submit(f.other.ID, "0331234567", 100)
	require.NoError(t, err)

	job, err := d.PollForWork(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, job.ID)
	job, err = d.PollForWork(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, job.ID)
}

func TestConcurrentPollsClaimAtMostOnce(t *testing.T) {
	f := newTransferFixture()
	d := NewJobDispatcher(f.svc)

	created, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)

	const pollers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []int64
	)
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := d.PollForWork(context.Background(), "dev")
			if err != nil || job == nil {
				return
			}
			mu.Lock()
			claimed = append(claimed, job.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, []int64{created.ID}, claimed)
}

func TestSubmitResultLifecycle(t *testing.T) {
	f := newTransferFixture()
	ctx := context.Background()

	created, err := f.submit(f.owner.ID, "0321234567", 2500)
	require.NoError(t, err)

	_, err = f.svc.SubmitResult(ctx, created.ID, domain.TransferStatusSuccess, "ok")
	assert.ErrorIs(t, err, ErrTransferNotProcessing, "pending transfers cannot be completed")

	job, err := f.svc.ClaimNext(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, job)

	_, err = f.svc.SubmitResult(ctx, created.ID, domain.TransferStatusProcessing, "")
	assert.ErrorIs(t, err, ErrInvalidResultStatus)

	done, err := f.svc.SubmitResult(ctx, created.ID, domain.TransferStatusSuccess, "Transfert reussi")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusSuccess, done.Status)
	require.NotNil(t, done.ExecutedAt)

	_, err = f.svc.SubmitResult(ctx, created.ID, domain.TransferStatusFailed, "late")
	assert.ErrorIs(t, err, ErrTransferNotProcessing)
	assert.Equal(t, domain.TransferStatusSuccess, f.ledger.status(created.ID))

	_, err = f.svc.SubmitResult(ctx, 9999, domain.TransferStatusSuccess, "")
	assert.ErrorIs(t, err, ErrTransferNotFound)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, sentNotification{
		Kind:       "transfer",
		Handle:     "@rija",
		TransferID: created.ID,
		Status:     domain.TransferStatusSuccess,
		Detail:     "Transfert reussi",
	}, sent[0])
}

func TestSubmitResultSucceedsWhenNotificationFails(t *testing.T) {
	f := newTransferFixture()
	f.notifier.err = errors.New("redis down")
	ctx := context.Background()

	created, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)
	_, err = f.svc.ClaimNext(ctx, "dev-1")
	require.NoError(t, err)

	_, err = f.svc.SubmitResult(ctx, created.ID, domain.TransferStatusFailed, "network busy")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStatusFailed, f.ledger.status(created.ID))
}

func TestGetEnforcesOwnership(t *testing.T) {
	f := newTransferFixture()
	ctx := context.Background()

	created, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.owner.ID, domain.RoleUser, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.svc.Get(ctx, f.other.ID, domain.RoleUser, created.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(ctx, f.other.ID, domain.RoleAdmin, created.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, f.owner.ID, domain.RoleUser, 404)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestListReturnsOwnTransfersNewestFirst(t *testing.T) {
	f := newTransferFixture()

	a, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	b, err := f.submit(f.owner.ID, "0331234567", 100)
	require.NoError(t, err)
	_, err = f.submit(f.other.ID, "0341234567", 100)
	require.NoError(t, err)

	list, err := f.svc.List(context.Background(), f.owner.ID, 0, 0)
	require.NoError(t, err)
	ids := make([]int64, 0, len(list))
	for _, tr := range list {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int64{b.ID, a.ID}, ids)
}

func TestQueueSnapshotReportsEveryStatus(t *testing.T) {
	f := newTransferFixture()
	_, err := f.submit(f.owner.ID, "0321234567", 100)
	require.NoError(t, err)
	_, err = f.submit(f.owner.ID, "0331234567", 100)
	require.NoError(t, err)

	snap, err := NewQueueService(f.ledger).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QueueSnapshot{
		domain.TransferStatusDelayed:    1,
		domain.TransferStatusPending:    1,
		domain.TransferStatusProcessing: 0,
		domain.TransferStatusSuccess:    0,
		domain.TransferStatusFailed:     0,
	}, snap)
}
