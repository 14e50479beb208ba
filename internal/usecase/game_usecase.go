package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/backgammon"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
)

// GameUsecase - авторитетный сервер нард. Клиенты шлют намерения, сервер рассылает состояние.
type GameUsecase interface {
	HandleMessage(ctx context.Context, userID uuid.UUID, msg *events.Message) error
	HandleDisconnect(ctx context.Context, userID uuid.UUID)
}

type gameUsecase struct {
	rooms  memory.GameRoomRepository
	wsRepo memory.WebsocketConnectionRepository
}

func NewGameUsecase(rooms memory.GameRoomRepository, wsRepo memory.WebsocketConnectionRepository) GameUsecase {
	return &gameUsecase{
		rooms:  rooms,
		wsRepo: wsRepo,
	}
}

func (uc *gameUsecase) HandleMessage(ctx context.Context, userID uuid.UUID, msg *events.Message) error {
	var evt events.GameMoveEvent

	if err := msg.Decode(&evt); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	roomID := strings.TrimSpace(evt.RoomID)
	if roomID == "" {
		return fmt.Errorf("%w: roomId is required", ErrBadRequest)
	}

	player := userID.String()

	if msg.Type == events.GameJoin {
		room := uc.rooms.GetOrCreate(roomID)

		var err error
		room.Do(func(g *backgammon.Game) {
			_, err = g.Join(player)
		})

		return uc.reply(room, userID, err)
	}

	room, ok := uc.rooms.Get(roomID)
	if !ok {
		uc.sendError(userID, roomID, "room not found")
		return nil
	}

	var err error

	switch msg.Type {
	case events.GameStart:
		room.Do(func(g *backgammon.Game) {
			err = g.Start(player)
		})

	case events.GameRoll:
		room.Do(func(g *backgammon.Game) {
			_, _, err = g.Roll(player)
		})

	case events.GameMove:
		room.Do(func(g *backgammon.Game) {
			_, err = g.Move(player, evt.From, evt.To)
		})

	case events.GameLeave:
		uc.leave(room, player)
		return nil

	default:
		return fmt.Errorf("%w: unknown game event %q", ErrBadRequest, msg.Type)
	}

	return uc.reply(room, userID, err)
}

// HandleDisconnect - отключение равносильно выходу из всех комнат
func (uc *gameUsecase) HandleDisconnect(_ context.Context, userID uuid.UUID) {
	player := userID.String()

	for _, room := range uc.rooms.List() {
		var member bool
		room.Do(func(g *backgammon.Game) {
			_, member = g.ColorOf(player)
		})

		if member {
			uc.leave(room, player)
		}
	}
}

func (uc *gameUsecase) leave(room *memory.GameRoom, player string) {
	var (
		empty   bool
		forfeit bool
	)

	room.Do(func(g *backgammon.Game) {
		forfeit = g.Leave(player)
		empty = g.Empty()
	})

	if empty {
		uc.rooms.Delete(room.ID)
		return
	}

	if forfeit {
		slog.Info("player forfeited", slog.String(constant.RoomID, room.ID), slog.String(constant.UserID, player))
	}

	uc.broadcast(room)
}

// reply - ошибка правил уходит игроку как game-error, иначе всем рассылается состояние
func (uc *gameUsecase) reply(room *memory.GameRoom, userID uuid.UUID, err error) error {
	if err != nil {
		if !isRuleError(err) {
			return err
		}

		uc.sendError(userID, room.ID, err.Error())
		return nil
	}

	uc.broadcast(room)

	return nil
}

func (uc *gameUsecase) broadcast(room *memory.GameRoom) {
	var state events.GameStateEvent

	room.Do(func(g *backgammon.Game) {
		state = stateEvent(room.ID, g)
	})

	msg, err := events.NewMessage(events.GameState, state)
	if err != nil {
		slog.Error("marshal game state", slog.Any(constant.Error, err))
		return
	}

	for _, player := range state.Players {
		id, err := uuid.Parse(player)
		if err != nil {
			continue
		}

		if err = uc.wsRepo.Write(id, msg); err != nil {
			slog.Warn(
				"write game state",
				slog.String(constant.RoomID, room.ID),
				slog.Any(constant.UserID, id),
				slog.Any(constant.Error, err),
			)
		}
	}
}

func (uc *gameUsecase) sendError(userID uuid.UUID, roomID, message string) {
	msg, err := events.NewMessage(events.GameError, events.GameErrorEvent{RoomID: roomID, Message: message})
	if err != nil {
		return
	}

	if err = uc.wsRepo.Write(userID, msg); err != nil {
		slog.Warn("write game error", slog.Any(constant.UserID, userID), slog.Any(constant.Error, err))
	}
}

func stateEvent(roomID string, g *backgammon.Game) events.GameStateEvent {
	st := g.State()

	evt := events.GameStateEvent{
		RoomID:        roomID,
		Phase:         string(st.Phase),
		CurrentPlayer: string(st.Current),
		Dice:          st.Dice,
		Points:        st.Board.Points,
		Bar:           make(map[string]int, len(st.Board.Bar)),
		Off:           make(map[string]int, len(st.Board.Off)),
		Players:       make(map[string]string, len(st.Players)),
		Winner:        string(st.Winner),
	}

	for c, n := range st.Board.Bar {
		evt.Bar[string(c)] = n
	}

	for c, n := range st.Board.Off {
		evt.Off[string(c)] = n
	}

	for c, id := range st.Players {
		evt.Players[string(c)] = id
	}

	for _, m := range g.LegalMoves() {
		if !slices.Contains(evt.Moves, m.From) {
			evt.Moves = append(evt.Moves, m.From)
		}
	}
	slices.Sort(evt.Moves)

	return evt
}

var ruleErrors = []error{
	backgammon.ErrRoomFull,
	backgammon.ErrNotPlayer,
	backgammon.ErrNotYourTurn,
	backgammon.ErrWrongPhase,
	backgammon.ErrInvalidPoint,
	backgammon.ErrNoChecker,
	backgammon.ErrMustEnterFromBar,
	backgammon.ErrWrongDirection,
	backgammon.ErrBlocked,
	backgammon.ErrNoMatchingDie,
	backgammon.ErrCannotBearOff,
}

func isRuleError(err error) bool {
	for _, target := range ruleErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
