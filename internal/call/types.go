package call

import (
	"sort"
	"strings"
	"time"
)

// MediaKind - тип звонка
type MediaKind string

const (
	Voice MediaKind = "voice"
	Video MediaKind = "video"
)

func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case Voice, Video:
		return MediaKind(s), true
	}

	return "", false
}

// Role фиксируется при создании сессии и не меняется
type Role int

const (
	Initiator Role = iota
	Receiver
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}

	return "receiver"
}

// State - состояние жизненного цикла звонка
type State string

const (
	StateRinging    State = "ringing"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateEnded      State = "ended"
)

// Status - итог звонка для журнала
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusMissed    Status = "missed"
)

// EndReason - причина перехода в ended
type EndReason int

const (
	ReasonHangup EndReason = iota
	ReasonRemoteHangup
	ReasonRejected
	ReasonRemoteLogout
	ReasonRingTimeout
	ReasonMediaFailure
	ReasonNegotiationTimeout
	ReasonConnectionFailed
)

var reasonNames = map[EndReason]string{
	ReasonHangup:             "hangup",
	ReasonRemoteHangup:       "remote_hangup",
	ReasonRejected:           "rejected",
	ReasonRemoteLogout:       "remote_logout",
	ReasonRingTimeout:        "ring_timeout",
	ReasonMediaFailure:       "media_failure",
	ReasonNegotiationTimeout: "negotiation_timeout",
	ReasonConnectionFailed:   "connection_failed",
}

func (r EndReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}

	return "unknown"
}

// Remote - завершение пришло от собеседника, а не от локальной стороны
func (r EndReason) Remote() bool {
	switch r {
	case ReasonRemoteHangup, ReasonRejected, ReasonRemoteLogout:
		return true
	}

	return false
}

// local - кто завершил звонок с точки зрения классификации.
// Таймаут дозвона у инициатора считается локальной отменой, у получателя - пропущенным.
func (r EndReason) local(role Role) bool {
	if r == ReasonRingTimeout {
		return role == Initiator
	}

	return !r.Remote()
}

// Classify определяет статус записи журнала по состоянию перед завершением
func Classify(prev State, role Role, reason EndReason) Status {
	if prev == StateConnected {
		return StatusCompleted
	}

	if reason.local(role) {
		return StatusCancelled
	}

	return StatusMissed
}

// Log - запись журнала звонков, ровно одна на сессию
type Log struct {
	SessionID  string
	PeerID     string
	ReceiverID string
	Role       Role
	CallType   MediaKind
	Status     Status
	Reason     EndReason
	Duration   time.Duration
	StartedAt  time.Time
	EndedAt    time.Time
}

// SessionID строится из отсортированной пары идентификаторов
func SessionID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)

	return strings.Join(ids, ":")
}
