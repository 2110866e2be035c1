package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/ussd-relay/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedRecipient = errors.New("recipient operator is not supported")
	ErrUnknownOperator      = errors.New("unknown operator")
)

// OperatorResolver maps normalized phone numbers to operator codes using a cached
// copy of the active prefix table.
type OperatorResolver struct {
	source       PrefixSource
	refreshEvery time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	prefixes  []models.OperatorPrefix
	operators map[string]struct{}
	loadedAt  time.Time
}

func NewOperatorResolver(source PrefixSource, refreshEvery time.Duration) *OperatorResolver {
	return &OperatorResolver{
		source:       source,
		refreshEvery: refreshEvery,
		now:          time.Now,
		operators:    map[string]struct{}{},
	}
}

// Refresh reloads the prefix table. On failure the previous table stays in use.
func (r *OperatorResolver) Refresh(ctx context.Context) error {
	rows, err := r.source.ActiveOperatorPrefixes(ctx)
	if err != nil {
		return fmt.Errorf("load operator prefixes: %w", err)
	}

	active := make([]models.OperatorPrefix, 0, len(rows))
	operators := make(map[string]struct{}, len(rows))
	for _, p := range rows {
		if !p.Active || p.Prefix == "" {
			continue
		}
		active = append(active, p)
		operators[p.OperatorCode] = struct{}{}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return len(active[i].Prefix) > len(active[j].Prefix)
	})

	r.mu.Lock()
	r.prefixes = active
	r.operators = operators
	r.loadedAt = r.now()
	r.mu.Unlock()
	return nil
}

// Resolve returns the operator of an already normalized phone number.
// The longest matching active prefix wins.
func (r *OperatorResolver) Resolve(ctx context.Context, phone string) (string, error) {
	if r.stale() {
		if err := r.Refresh(ctx); err != nil {
			zap.L().Warn("operator prefix refresh failed, using cached table", zap.Error(err))
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.prefixes {
		if strings.HasPrefix(phone, p.Prefix) {
			return p.OperatorCode, nil
		}
	}
	return "", ErrUnsupportedRecipient
}

// KnownOperator reports whether code has at least one active prefix.
func (r *OperatorResolver) KnownOperator(ctx context.Context, code string) bool {
	if r.stale() {
		if err := r.Refresh(ctx); err != nil {
			zap.L().Warn("operator prefix refresh failed, using cached table", zap.Error(err))
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[code]
	return ok
}

func (r *OperatorResolver) stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.prefixes) == 0 {
		return true
	}
	return r.refreshEvery > 0 && r.now().Sub(r.loadedAt) >= r.refreshEvery
}

// Run refreshes the table periodically until ctx is cancelled or the returned stop func is called.
func (r *OperatorResolver) Run(ctx context.Context) func() {
	stopCh := make(chan struct{})
	var once sync.Once
	interval := r.refreshEvery
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if err := r.Refresh(ctx); err != nil {
					zap.L().Warn("operator prefix refresh failed", zap.Error(err))
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopCh) })
	}
}

type prefixFile struct {
	Prefixes []struct {
		Prefix   string `yaml:"prefix"`
		Operator string `yaml:"operator"`
		Active   *bool  `yaml:"active"`
	} `yaml:"prefixes"`
}

// LoadOperatorPrefixFile reads a YAML prefix table. Entries without an
// explicit active flag are active.
func LoadOperatorPrefixFile(path string) ([]models.OperatorPrefix, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefix file: %w", err)
	}
	var f prefixFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prefix file: %w", err)
	}

	out := make([]models.OperatorPrefix, 0, len(f.Prefixes))
	for i, p := range f.Prefixes {
		prefix := strings.TrimSpace(p.Prefix)
		operator := strings.ToUpper(strings.TrimSpace(p.Operator))
		if prefix == "" || operator == "" {
			return nil, fmt.Errorf("prefix file entry %d: prefix and operator are required", i)
		}
		active := true
		if p.Active != nil {
			active = *p.Active
		}
		out = append(out, models.OperatorPrefix{Prefix: prefix, OperatorCode: operator, Active: active})
	}
	return out, nil
}
