package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingPromoter struct {
	calls atomic.Int32
	err   error
}

func (p *countingPromoter) PromoteDue(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

type mockSweeper struct{ mock.Mock }

func (m *mockSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Snapshot(ctx context.Context) (models.QueueSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(models.QueueSnapshot)
	return snap, args.Error(1)
}

type mockPurger struct{ mock.Mock }

func (m *mockPurger) Purge(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestPromotionWorkerProcessOnce(t *testing.T) {
	p := &countingPromoter{}
	w := NewPromotionWorker(p)
	require.NoError(t, w.ProcessOnce(context.Background()))
	assert.Equal(t, int32(1), p.calls.Load())

	p.err = errors.New("db down")
	assert.ErrorIs(t, w.ProcessOnce(context.Background()), p.err)
}

func TestPromotionWorkerRunsUntilStopped(t *testing.T) {
	p := &countingPromoter{}
	w := NewPromotionWorker(p).WithPollInterval(10 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()

	time.Sleep(30 * time.Millisecond)
	settled := p.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, p.calls.Load())
}

func TestMaintenanceWorkerRunOnce(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	sweeper := &mockSweeper{}
	queue := &mockQueue{}
	purger := &mockPurger{}
	sweeper.On("Sweep", mock.Anything, now).Return(2, nil).Once()
	queue.On("Snapshot", mock.Anything).Return(models.QueueSnapshot{"pending": 1}, nil).Once()
	purger.On("Purge", mock.Anything, now).Return(int64(3), nil).Once()

	w := NewMaintenanceWorker(sweeper, queue, purger)
	w.now = func() time.Time { return now }
	w.RunOnce(context.Background())

	sweeper.AssertExpectations(t)
	queue.AssertExpectations(t)
	purger.AssertExpectations(t)
}

func TestMaintenanceWorkerContinuesAfterFailure(t *testing.T) {
	sweeper := &mockSweeper{}
	queue := &mockQueue{}
	sweeper.On("Sweep", mock.Anything, mock.Anything).Return(0, errors.New("sweep failed")).Once()
	queue.On("Snapshot", mock.Anything).Return(nil, errors.New("count failed")).Once()

	w := NewMaintenanceWorker(sweeper, queue, nil)
	w.RunOnce(context.Background())

	sweeper.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestMaintenanceWorkerStopsOnContextCancel(t *testing.T) {
	sweeper := &mockSweeper{}
	sweeper.On("Sweep", mock.Anything, mock.Anything).Return(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w := NewMaintenanceWorker(sweeper, nil, nil).WithInterval(10 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	sweeper.AssertCalled(t, "Sweep", mock.Anything, mock.Anything)
}
