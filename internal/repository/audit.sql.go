package repository

import "context"

type InsertTransferAuditParams struct {
	TransferIDs []int64
	Action      string
	PrevState   *string
	NextState   *string
	Metadata    []byte
}

const insertTransferAudit = `
INSERT INTO audit_log (entity_type, entity_id, action, prev_state, next_state, metadata)
SELECT 'transfer_request', id::text, $2::text, $3::text, $4::text, $5::jsonb
FROM unnest($1::bigint[]) AS id`

func (q *Queries) InsertTransferAudit(ctx context.Context, arg InsertTransferAuditParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertTransferAudit, arg.TransferIDs, arg.Action, arg.PrevState, arg.NextState, arg.Metadata)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
