package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/domain"
	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/ayo6706/ussd-relay/internal/repository"
	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeLedger mirrors the conditional updates of the PostgreSQL ledger under one mutex.
type fakeLedger struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.TransferRequest
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{}
}

type fakeOwnerScope struct {
	l *fakeLedger
}

func (s fakeOwnerScope) LatestTransferCreatedAt(_ context.Context, ownerID uuid.UUID) (*time.Time, error) {
	var latest *time.Time
	for _, r := range s.l.rows {
		if r.OwnerID != ownerID {
			continue
		}
		if latest == nil || r.CreatedAt.After(*latest) {
			ts := r.CreatedAt
			latest = &ts
		}
	}
	return latest, nil
}

func (s fakeOwnerScope) HasTransferToRecipientSince(_ context.Context, ownerID uuid.UUID, recipient string, since time.Time) (bool, error) {
	for _, r := range s.l.rows {
		if r.OwnerID == ownerID && r.RecipientPhone == recipient && r.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s fakeOwnerScope) InsertTransfer(_ context.Context, req *models.TransferRequest) error {
	s.l.nextID++
	req.ID = s.l.nextID
	req.UpdatedAt = req.CreatedAt
	row := *req
	s.l.rows = append(s.l.rows, &row)
	return nil
}

func (l *fakeLedger) WithOwnerLock(ctx context.Context, _ uuid.UUID, fn func(tx repository.OwnerScope) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := len(l.rows)
	if err := fn(fakeOwnerScope{l: l}); err != nil {
		l.rows = l.rows[:snapshot]
		return err
	}
	return nil
}

func (l *fakeLedger) PromoteDue(_ context.Context, now time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, r := range l.rows {
		if r.Status == domain.TransferStatusDelayed && !r.ExecuteAfter.After(now) {
			r.Status = domain.TransferStatusPending
			r.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) ClaimOldestPending(_ context.Context, now time.Time, deviceID string) (*models.TransferRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var oldest *models.TransferRequest
	for _, r := range l.rows {
		if r.Status != domain.TransferStatusPending || r.ExecuteAfter.After(now) {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = domain.TransferStatusProcessing
	oldest.ClaimedBy = &deviceID
	oldest.UpdatedAt = now
	out := *oldest
	return &out, nil
}

func (l *fakeLedger) CompleteProcessing(_ context.Context, id int64, status, carrierResponse string, now time.Time) (*models.TransferRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ID != id {
			continue
		}
		if r.Status != domain.TransferStatusProcessing {
			return nil, nil
		}
		r.Status = status
		r.CarrierResponse = &carrierResponse
		r.UpdatedAt = now
		r.ExecutedAt = &now
		out := *r
		return &out, nil
	}
	return nil, nil
}

func (l *fakeLedger) GetTransfer(_ context.Context, id int64) (*models.TransferRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ID == id {
			out := *r
			return &out, nil
		}
	}
	return nil, fmt.Errorf("get transfer %d: %w", id, models.ErrNotFound)
}

func (l *fakeLedger) ListTransfersByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int32) ([]models.TransferRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.TransferRequest
	for _, r := range l.rows {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (l *fakeLedger) FailStaleProcessing(_ context.Context, cutoff time.Time, reason string, now time.Time) ([]models.TransferRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.TransferRequest
	for _, r := range l.rows {
		if r.Status == domain.TransferStatusProcessing && r.UpdatedAt.Before(cutoff) {
			r.Status = domain.TransferStatusFailed
			r.CarrierResponse = &reason
			r.UpdatedAt = now
			out = append(out, *r)
		}
	}
	return out, nil
}

func (l *fakeLedger) CountByStatus(_ context.Context) (models.QueueSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := models.QueueSnapshot{}
	for _, r := range l.rows {
		out[r.Status]++
	}
	return out, nil
}

func (l *fakeLedger) status(id int64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if r.ID == id {
			return r.Status
		}
	}
	return ""
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

type fakeUsers struct {
	users map[uuid.UUID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[uuid.UUID]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", models.ErrNotFound)
	}
	return u, nil
}

type sentNotification struct {
	Kind       string
	Handle     string
	TransferID int64
	Status     string
	Detail     string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) NotifyTransferOutcome(_ context.Context, handle string, transferID int64, status, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: "transfer", Handle: handle, TransferID: transferID, Status: status, Detail: reason})
	return n.err
}

func (n *recordingNotifier) NotifyBalanceOutcome(_ context.Context, handle, status, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: "balance", Handle: handle, Status: status, Detail: detail})
	return n.err
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type staticPrefixes struct {
	mu       sync.Mutex
	prefixes []models.OperatorPrefix
	err      error
	calls    int
}

func (s *staticPrefixes) ActiveOperatorPrefixes(context.Context) ([]models.OperatorPrefix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.OperatorPrefix(nil), s.prefixes...), nil
}

func defaultPrefixes() *staticPrefixes {
	return &staticPrefixes{prefixes: []models.OperatorPrefix{
		{Prefix: "032", OperatorCode: "ORANGE", Active: true},
		{Prefix: "037", OperatorCode: "ORANGE", Active: true},
		{Prefix: "033", OperatorCode: "AIRTEL", Active: true},
		{Prefix: "034", OperatorCode: "TELMA", Active: true},
		{Prefix: "038", OperatorCode: "TELMA", Active: true},
	}}
}

type transferFixture struct {
	clock    *fakeClock
	ledger   *fakeLedger
	notifier *recordingNotifier
	svc      *TransferService
	owner    *models.User
	other    *models.User
}

func newTransferFixture() *transferFixture {
	clock := newFakeClock()
	ledger := newFakeLedger()
	notifier := &recordingNotifier{}
	owner := &models.User{ID: uuid.New(), ChatHandle: "@rija", Role: domain.RoleUser}
	other := &models.User{ID: uuid.New(), ChatHandle: "@hery", Role: domain.RoleUser}
	resolver := NewOperatorResolver(defaultPrefixes(), time.Hour)

	svc := NewTransferService(ledger, newFakeUsers(owner, other), resolver, notifier, TransferConfig{
		MaxAmount: domain.DefaultMaxTransferAmount,
		Cooldown:  DefaultCooldownPolicy(),
	})
	svc.now = clock.Now
	return &transferFixture{clock: clock, ledger: ledger, notifier: notifier, svc: svc, owner: owner, other: other}
}

func (f *transferFixture) submit(owner uuid.UUID, phone string, amount int64) (*models.TransferRequest, error) {
	return f.svc.Submit(context.Background(), SubmitTransferInput{OwnerID: owner, RecipientPhone: phone, Amount: amount})
}

func phoneWithSuffix(prefix string, n int) string {
	return fmt.Sprintf("%s%07d", prefix, n)
}
