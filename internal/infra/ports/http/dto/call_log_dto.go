package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/PeerCall/internal/domain/models"
)

type CallLogResponse struct {
	ID        uuid.UUID `json:"id"`
	PeerID    uuid.UUID `json:"peerId"`
	Incoming  bool      `json:"incoming"`
	CallType  string    `json:"callType"`
	Status    string    `json:"callStatus"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewCallLogResponse(logs []*models.CallLog) []CallLogResponse {
	resp := make([]CallLogResponse, 0, len(logs))

	for _, l := range logs {
		resp = append(resp, CallLogResponse{
			ID:        l.ID,
			PeerID:    l.PeerID,
			Incoming:  l.Incoming(),
			CallType:  l.CallType,
			Status:    l.Status,
			Duration:  l.Duration,
			CreatedAt: l.CreatedAt,
		})
	}

	return resp
}
