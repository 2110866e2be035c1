package repository

import (
	"context"

	"github.com/ayo6706/ussd-relay/internal/models"
)

const listActiveOperatorPrefixes = `
SELECT prefix, operator_code, active, updated_at FROM operator_prefixes
WHERE active
ORDER BY LENGTH(prefix) DESC, prefix`

func (q *Queries) ListActiveOperatorPrefixes(ctx context.Context) ([]models.OperatorPrefix, error) {
	rows, err := q.db.Query(ctx, listActiveOperatorPrefixes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.OperatorPrefix
	for rows.Next() {
		var p models.OperatorPrefix
		if err := rows.Scan(&p.Prefix, &p.OperatorCode, &p.Active, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type UpsertOperatorPrefixParams struct {
	Prefix       string
	OperatorCode string
	Active       bool
}

const upsertOperatorPrefix = `
INSERT INTO operator_prefixes (prefix, operator_code, active, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (prefix) DO UPDATE
SET operator_code = EXCLUDED.operator_code, active = EXCLUDED.active, updated_at = NOW()`

func (q *Queries) UpsertOperatorPrefix(ctx context.Context, arg UpsertOperatorPrefixParams) (int64, error) {
	tag, err := q.db.Exec(ctx, upsertOperatorPrefix, arg.Prefix, arg.OperatorCode, arg.Active)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
