package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository serves user lookups and operator prefix maintenance.
type Repository struct {
	db      *pgxpool.Pool
	queries *Queries
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, queries: New(db)}
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	created, err := r.queries.CreateUser(ctx, CreateUserParams{
		ID:          user.ID,
		ChatHandle:  user.ChatHandle,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	*user = created
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := r.queries.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err))
	}
	return &user, nil
}

// ActiveOperatorPrefixes returns active prefixes, longest first.
func (r *Repository) ActiveOperatorPrefixes(ctx context.Context) ([]models.OperatorPrefix, error) {
	prefixes, err := r.queries.ListActiveOperatorPrefixes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operator prefixes: %w", err)
	}
	return prefixes, nil
}

// UpsertOperatorPrefixes writes every prefix in a single transaction.
func (r *Repository) UpsertOperatorPrefixes(ctx context.Context, prefixes []models.OperatorPrefix) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := r.queries.WithTx(tx)
	for _, p := range prefixes {
		if _, err := qtx.UpsertOperatorPrefix(ctx, UpsertOperatorPrefixParams{
			Prefix:       p.Prefix,
			OperatorCode: p.OperatorCode,
			Active:       p.Active,
		}); err != nil {
			return fmt.Errorf("upsert operator prefix %s: %w", p.Prefix, err)
		}
	}
	return tx.Commit(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
