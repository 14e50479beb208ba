package models

import (
	"time"

	"github.com/google/uuid"
)

// Итоги звонка
const (
	CallStatusCompleted = "completed"
	CallStatusCancelled = "cancelled"
	CallStatusMissed    = "missed"
)

const (
	CallTypeVoice = "voice"
	CallTypeVideo = "video"
)

// CallLog - запись журнала звонков. Каждая сторона пишет свою запись,
// OwnerID - кто прислал call-ended-log
type CallLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OwnerID    uuid.UUID `json:"owner_id" db:"owner_id"`
	PeerID     uuid.UUID `json:"peer_id" db:"peer_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`
	CallType   string    `json:"call_type" db:"call_type"`
	Status     string    `json:"status" db:"status"`
	// Duration в секундах
	Duration  int       `json:"duration" db:"duration"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewCallLog(ownerID, peerID, receiverID uuid.UUID, callType, status string, duration int) *CallLog {
	return &CallLog{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		PeerID:     peerID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     status,
		Duration:   duration,
		CreatedAt:  time.Now(),
	}
}

// Incoming - звонок был входящим для владельца записи
func (l *CallLog) Incoming() bool {
	return l.ReceiverID == l.OwnerID
}
