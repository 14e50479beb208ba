package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/domain/models"
)

func TestCallLogRecord(t *testing.T) {
	owner, peer := uuid.New(), uuid.New()

	tests := []struct {
		name         string
		evt          events.CallEndedLogEvent
		wantErr      error
		wantDuration int
		wantIncoming bool
	}{
		{
			name: "completed outgoing",
			evt: events.CallEndedLogEvent{
				ReceiverID: peer.String(),
				CallType:   models.CallTypeVideo,
				Duration:   42,
				CallStatus: models.CallStatusCompleted,
			},
			wantDuration: 42,
		},
		{
			name: "missed incoming drops duration",
			evt: events.CallEndedLogEvent{
				ReceiverID: owner.String(),
				CallType:   models.CallTypeVoice,
				Duration:   7,
				CallStatus: models.CallStatusMissed,
			},
			wantIncoming: true,
		},
		{
			name: "unknown type",
			evt: events.CallEndedLogEvent{
				ReceiverID: peer.String(),
				CallType:   "fax",
				CallStatus: models.CallStatusCompleted,
			},
			wantErr: ErrBadRequest,
		},
		{
			name: "unknown status",
			evt: events.CallEndedLogEvent{
				ReceiverID: peer.String(),
				CallType:   models.CallTypeVoice,
				CallStatus: "dropped",
			},
			wantErr: ErrBadRequest,
		},
		{
			name: "negative duration",
			evt: events.CallEndedLogEvent{
				ReceiverID: peer.String(),
				CallType:   models.CallTypeVoice,
				Duration:   -1,
				CallStatus: models.CallStatusCompleted,
			},
			wantErr: ErrBadRequest,
		},
		{
			name: "receiver outside the call",
			evt: events.CallEndedLogEvent{
				ReceiverID: uuid.NewString(),
				CallType:   models.CallTypeVoice,
				CallStatus: models.CallStatusCancelled,
			},
			wantErr: ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeCallLogRepo{}
			uc := NewCallLogUsecase(repo)

			log, err := uc.Record(context.Background(), owner, peer, tt.evt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.logs)
				return
			}

			require.NoError(t, err)
			require.Len(t, repo.logs, 1)
			assert.Same(t, log, repo.logs[0])

			assert.Equal(t, owner, log.OwnerID)
			assert.Equal(t, peer, log.PeerID)
			assert.Equal(t, tt.evt.CallType, log.CallType)
			assert.Equal(t, tt.evt.CallStatus, log.Status)
			assert.Equal(t, tt.wantDuration, log.Duration)
			assert.Equal(t, tt.wantIncoming, log.Incoming())
		})
	}
}

func TestCallLogListLimit(t *testing.T) {
	repo := &fakeCallLogRepo{}
	uc := NewCallLogUsecase(repo)
	owner := uuid.New()

	for _, tt := range []struct{ limit, want int }{
		{0, 50},
		{-5, 50},
		{10, 10},
		{1000, 200},
	} {
		_, err := uc.List(context.Background(), owner, tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, repo.lastLimit, "limit %d", tt.limit)
	}
}
