package events

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Типы событий сигналинга
const (
	CallRequest      = "call-request"
	CallOffer        = "call-offer"
	CallAnswer       = "call-answer"
	IceCandidate     = "ice-candidate"
	CallAccepted     = "call-accepted"
	CallRejected     = "call-rejected"
	CallEnded        = "call-ended"
	EndCall          = "end-call"
	CallEndedLog     = "call-ended-log"
	UserLoggedOut    = "user-logged-out"
	WhiteboardToggle = "whiteboard-toggle"

	GameJoin  = "game-join"
	GameStart = "game-start"
	GameRoll  = "game-roll"
	GameMove  = "game-move"
	GameLeave = "game-leave"
	GameState = "game-state"
	GameError = "game-error"

	Ping  = "ping"
	Pong  = "pong"
	Error = "error"
)

// Relayed - события, которые сервер пересылает адресату без изменений
var Relayed = map[string]bool{
	CallRequest:      true,
	CallOffer:        true,
	CallAnswer:       true,
	IceCandidate:     true,
	CallAccepted:     true,
	CallRejected:     true,
	WhiteboardToggle: true,
}

// Message - общее событие. From проставляет сервер, To - адресат
type Message struct {
	Type string          `json:"type"`
	From string          `json:"from,omitempty"`
	To   string          `json:"to,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage упаковывает payload в Message
func NewMessage(eventType string, payload any) (Message, error) {
	msg := Message{Type: eventType}

	if payload == nil {
		return msg, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	msg.Data = data

	return msg, nil
}

// Decode разбирает payload, пустой payload не ошибка
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}

	return nil
}

// CallRequestEvent - приглашение в звонок, пока собеседник не ответил
type CallRequestEvent struct {
	CallType string `json:"callType"`
}

type CallOfferEvent struct {
	Offer    webrtc.SessionDescription `json:"offer"`
	CallType string                    `json:"callType"`
}

type CallAnswerEvent struct {
	Answer webrtc.SessionDescription `json:"answer"`
}

// IceCandidateEvent - ICE кандидаты
type IceCandidateEvent struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type CallAcceptedEvent struct{}

type CallRejectedEvent struct {
	Reason string `json:"reason,omitempty"`
}

type CallEndedEvent struct{}

// EndCallEvent - сторона, завершившая звонок, сообщает состояние на момент завершения
type EndCallEvent struct {
	CallState string `json:"callState"`
}

// CallEndedLogEvent - запись в журнал звонков, длительность в секундах
type CallEndedLogEvent struct {
	ReceiverID string `json:"receiverId"`
	CallType   string `json:"callType"`
	Duration   int    `json:"duration"`
	CallStatus string `json:"callStatus"`
}

type UserLoggedOutEvent struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type WhiteboardToggleEvent struct {
	IsOpen bool `json:"isOpen"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type GameRoomEvent struct {
	RoomID string `json:"roomId"`
}

type GameMoveEvent struct {
	RoomID string `json:"roomId"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

// GameStateEvent - авторитетное состояние партии
type GameStateEvent struct {
	RoomID        string            `json:"roomId"`
	Phase         string            `json:"phase"`
	CurrentPlayer string            `json:"currentPlayer"`
	Dice          []int             `json:"dice,omitempty"`
	Moves         []int             `json:"moves,omitempty"`
	Points        [24]int           `json:"points"`
	Bar           map[string]int    `json:"bar"`
	Off           map[string]int    `json:"off"`
	Players       map[string]string `json:"players"`
	Winner        string            `json:"winner,omitempty"`
}

type GameErrorEvent struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}
