package repository

import (
	"context"

	"github.com/ayo6706/ussd-relay/internal/models"
	"github.com/google/uuid"
)

type CreateUserParams struct {
	ID          uuid.UUID
	ChatHandle  string
	DisplayName string
	Role        string
}

const createUser = `
INSERT INTO users (id, chat_handle, display_name, role, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, chat_handle, display_name, role, created_at`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, createUser, arg.ID, arg.ChatHandle, arg.DisplayName, arg.Role).
		Scan(&u.ID, &u.ChatHandle, &u.DisplayName, &u.Role, &u.CreatedAt)
	return u, err
}

const getUser = `SELECT id, chat_handle, display_name, role, created_at FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, getUser, id).Scan(&u.ID, &u.ChatHandle, &u.DisplayName, &u.Role, &u.CreatedAt)
	return u, err
}
