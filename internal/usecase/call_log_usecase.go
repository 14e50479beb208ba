package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/application/metric"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/domain/models"
	"github.com/qrave1/PeerCall/internal/infra/adapters/postgres/repository"
)

const (
	defaultCallLogLimit = 50
	maxCallLogLimit     = 200
)

// CallLogUsecase - журнал звонков, наполняется событиями call-ended-log
type CallLogUsecase interface {
	Record(ctx context.Context, ownerID, peerID uuid.UUID, evt events.CallEndedLogEvent) (*models.CallLog, error)
	List(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error)
}

type callLogUsecase struct {
	callLogRepo repository.CallLogRepository
}

func NewCallLogUsecase(callLogRepo repository.CallLogRepository) CallLogUsecase {
	return &callLogUsecase{callLogRepo: callLogRepo}
}

func (uc *callLogUsecase) Record(
	ctx context.Context,
	ownerID, peerID uuid.UUID,
	evt events.CallEndedLogEvent,
) (*models.CallLog, error) {
	switch evt.CallType {
	case models.CallTypeVoice, models.CallTypeVideo:
	default:
		return nil, fmt.Errorf("%w: unknown call type %q", ErrBadRequest, evt.CallType)
	}

	switch evt.CallStatus {
	case models.CallStatusCompleted, models.CallStatusCancelled, models.CallStatusMissed:
	default:
		return nil, fmt.Errorf("%w: unknown call status %q", ErrBadRequest, evt.CallStatus)
	}

	if evt.Duration < 0 {
		return nil, fmt.Errorf("%w: negative duration", ErrBadRequest)
	}

	receiverID, err := uuid.Parse(evt.ReceiverID)
	if err != nil || (receiverID != ownerID && receiverID != peerID) {
		return nil, fmt.Errorf("%w: receiver must be a call participant", ErrBadRequest)
	}

	duration := evt.Duration
	if evt.CallStatus != models.CallStatusCompleted {
		duration = 0
	}

	log := models.NewCallLog(ownerID, peerID, receiverID, evt.CallType, evt.CallStatus, duration)

	if err = uc.callLogRepo.Create(ctx, log); err != nil {
		return nil, err
	}

	metric.RecordCall(log.CallType, log.Status, time.Duration(log.Duration)*time.Second)

	slog.Info(
		"call logged",
		slog.Any(constant.UserID, ownerID),
		slog.Any(constant.PeerID, peerID),
		slog.String(constant.CallType, log.CallType),
		slog.String(constant.Status, log.Status),
		slog.Int(constant.Duration, log.Duration),
	)

	return log, nil
}

func (uc *callLogUsecase) List(ctx context.Context, ownerID uuid.UUID, limit int) ([]*models.CallLog, error) {
	if limit <= 0 {
		limit = defaultCallLogLimit
	}

	limit = min(limit, maxCallLogLimit)

	return uc.callLogRepo.ListByOwner(ctx, ownerID, limit)
}
