package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/shopspring/decimal"
)

var ErrCarrierRejected = errors.New("carrier rejected the request")

// Carrier runs USSD sessions against a mobile operator.
type Carrier interface {
	// Transfer returns the carrier's response text. On rejection the text is
	// returned alongside the error.
	Transfer(ctx context.Context, job models.TransferJob) (string, error)
	// Balance returns the balance text exactly as the carrier displays it.
	Balance(ctx context.Context, operator string) (string, error)
}

// SimulatedCarrier stands in for a real handset. Every call sleeps for a random
// latency and then fails with probability FailureRate.
type SimulatedCarrier struct {
	FailureRate float64
	MinLatency  time.Duration
	MaxLatency  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

func NewSimulatedCarrier(failureRate float64) *SimulatedCarrier {
	return &SimulatedCarrier{
		FailureRate: failureRate,
		MinLatency:  2 * time.Second,
		MaxLatency:  5 * time.Second,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

func (c *SimulatedCarrier) Transfer(ctx context.Context, job models.TransferJob) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	if c.fails() {
		return fmt.Sprintf("%s: solde insuffisant", job.OperatorCode), ErrCarrierRejected
	}
	ref := fmt.Sprintf("%s-%s-%05d", job.OperatorCode, c.now().Format("20060102-150405"), c.intn(100000))
	return fmt.Sprintf("Transfert de %d Ar vers %s reussi. Ref: %s", job.Amount, job.RecipientPhone, ref), nil
}

func (c *SimulatedCarrier) Balance(ctx context.Context, operator string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	if c.fails() {
		return "", fmt.Errorf("%w: %s service unavailable", ErrCarrierRejected, operator)
	}
	cents := decimal.New(int64(c.intn(5_000_000)), -2)
	return displayBalance(cents), nil
}

// displayBalance renders d the way handsets show it: "12 500,50".
func displayBalance(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String() + "," + frac
}

func (c *SimulatedCarrier) wait(ctx context.Context) error {
	delay := c.MinLatency
	if span := c.MaxLatency - c.MinLatency; span > 0 {
		delay += time.Duration(c.int63n(int64(span)))
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("carrier session canceled: %w", ctx.Err())
	}
}

func (c *SimulatedCarrier) fails() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < c.FailureRate
}

func (c *SimulatedCarrier) intn(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}

func (c *SimulatedCarrier) int63n(n int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Int63n(n)
}
