package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/application/metric"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
)

// Причины отказа в call-rejected, которые выставляет сервер
const (
	RejectOffline = "offline"
	RejectBusy    = "busy"
)

// SignalingUsecase пересылает события звонка адресату и следит за звонками в процессе
type SignalingUsecase interface {
	HandleConnect(ctx context.Context, userID uuid.UUID)
	HandleMessage(ctx context.Context, userID uuid.UUID, msg *events.Message) error
	HandleDisconnect(ctx context.Context, userID uuid.UUID)

	HandlePing(ctx context.Context, userID uuid.UUID)
	SendError(userID uuid.UUID, message string)
}

type signalingUsecase struct {
	wsRepo       memory.WebsocketConnectionRepository
	presenceRepo memory.PresenceRepository
	calls        memory.CallRegistry
}

func NewSignalingUsecase(
	wsRepo memory.WebsocketConnectionRepository,
	presenceRepo memory.PresenceRepository,
	calls memory.CallRegistry,
) SignalingUsecase {
	return &signalingUsecase{
		wsRepo:       wsRepo,
		presenceRepo: presenceRepo,
		calls:        calls,
	}
}

func (s *signalingUsecase) HandleConnect(ctx context.Context, userID uuid.UUID) {
	if err := s.presenceRepo.Add(ctx, userID); err != nil {
		slog.Error("add presence", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}
}

func (s *signalingUsecase) HandleMessage(ctx context.Context, userID uuid.UUID, msg *events.Message) error {
	if !events.Relayed[msg.Type] && msg.Type != events.EndCall {
		return fmt.Errorf("%w: unknown event %q", ErrBadRequest, msg.Type)
	}

	to, err := s.target(userID, msg)
	if err != nil {
		return err
	}

	switch msg.Type {
	case events.CallRequest:
		if !s.wsRepo.IsConnected(to) {
			return s.reject(userID, to, RejectOffline)
		}

		if !s.calls.Start(userID, to) {
			return s.reject(userID, to, RejectBusy)
		}

	case events.CallAccepted:
		s.calls.Accept(userID, to)

	case events.CallRejected:
		if peer, ok := s.calls.Peer(userID); ok && peer == to {
			s.calls.End(userID)
		}

	case events.EndCall:
		if peer, ok := s.calls.Peer(userID); ok && peer == to {
			s.calls.End(userID)
		}

		return s.relay(userID, to, &events.Message{Type: events.CallEnded})
	}

	return s.relay(userID, to, msg)
}

// HandleDisconnect завершает звонок отключившегося пользователя, собеседник получает call-ended
func (s *signalingUsecase) HandleDisconnect(ctx context.Context, userID uuid.UUID) {
	if err := s.presenceRepo.Remove(ctx, userID); err != nil {
		slog.Error("remove presence", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}

	peerID, ok := s.calls.End(userID)
	if !ok {
		return
	}

	if err := s.relay(userID, peerID, &events.Message{Type: events.CallEnded}); err != nil {
		slog.Warn(
			"notify peer about disconnect",
			slog.Any(constant.UserID, userID),
			slog.Any(constant.PeerID, peerID),
			slog.Any(constant.Error, err),
		)
	}
}

func (s *signalingUsecase) HandlePing(_ context.Context, userID uuid.UUID) {
	if err := s.wsRepo.Write(userID, events.Message{Type: events.Pong}); err != nil {
		slog.Error("write pong", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}
}

func (s *signalingUsecase) SendError(userID uuid.UUID, message string) {
	msg, err := events.NewMessage(events.Error, events.ErrorEvent{Message: message})
	if err != nil {
		return
	}

	if err = s.wsRepo.Write(userID, msg); err != nil {
		slog.Error("write error event", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}
}

// target - адресат события. Для end-call без адреса берется собеседник из реестра
func (s *signalingUsecase) target(userID uuid.UUID, msg *events.Message) (uuid.UUID, error) {
	if msg.To == "" && msg.Type == events.EndCall {
		if peer, ok := s.calls.Peer(userID); ok {
			return peer, nil
		}
	}

	to, err := uuid.Parse(msg.To)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid recipient %q", ErrBadRequest, msg.To)
	}

	if to == userID {
		return uuid.Nil, fmt.Errorf("%w: cannot signal yourself", ErrBadRequest)
	}

	return to, nil
}

// relay пересылает событие адресату, from всегда проставляет сервер
func (s *signalingUsecase) relay(from, to uuid.UUID, msg *events.Message) error {
	out := events.Message{
		Type: msg.Type,
		From: from.String(),
		To:   to.String(),
		Data: msg.Data,
	}

	if err := s.wsRepo.Write(to, out); err != nil {
		if errors.Is(err, memory.ErrNotConnected) {
			return fmt.Errorf("%w: peer %s is offline", ErrNotFound, to)
		}

		return fmt.Errorf("relay %s: %w", msg.Type, err)
	}

	metric.RecordSignalingEvent(msg.Type)

	slog.Debug(
		"relay signaling event",
		slog.String(constant.Event, msg.Type),
		slog.Any(constant.UserID, from),
		slog.Any(constant.PeerID, to),
	)

	return nil
}

// reject отвечает звонящему от имени адресата
func (s *signalingUsecase) reject(callerID, calleeID uuid.UUID, reason string) error {
	msg, err := events.NewMessage(events.CallRejected, events.CallRejectedEvent{Reason: reason})
	if err != nil {
		return err
	}

	msg.From = calleeID.String()
	msg.To = callerID.String()

	if err = s.wsRepo.Write(callerID, msg); err != nil {
		return fmt.Errorf("write call-rejected: %w", err)
	}

	metric.RecordSignalingEvent(events.CallRejected)

	return nil
}
