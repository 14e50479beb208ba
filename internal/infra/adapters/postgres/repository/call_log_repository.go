package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/PeerCall/internal/domain/models"
)

type CallLogRepository interface {
	Create(ctx context.Context, log *models.CallLog) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error)
}

type callLogRepo struct {
	db *sqlx.DB
}

func NewCallLogRepo(db *sqlx.DB) CallLogRepository {
	return &callLogRepo{db: db}
}

func (r *callLogRepo) Create(ctx context.Context, log *models.CallLog) error {
	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO call_logs (id, owner_id, peer_id, receiver_id, call_type, status, duration, created_at)
		VALUES (:id, :owner_id, :peer_id, :receiver_id, :call_type, :status, :duration, :created_at)`,
		log,
	)
	if err != nil {
		return fmt.Errorf("create call log: %w", mapError(err))
	}

	return nil
}

func (r *callLogRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error) {
	logs := make([]*models.CallLog, 0, limit)

	err := r.db.SelectContext(
		ctx,
		&logs,
		`SELECT id, owner_id, peer_id, receiver_id, call_type, status, duration, created_at
		FROM call_logs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`,
		ownerID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list call logs: %w", err)
	}

	return logs, nil
}
