package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/infra/adapters/memory"
)

type gameFixture struct {
	white, black uuid.UUID

	ws    *fakeWS
	rooms memory.GameRoomRepository
	uc    GameUsecase
}

func newGameFixture(dice ...int) *gameFixture {
	f := &gameFixture{
		white: uuid.New(),
		black: uuid.New(),
	}

	i := 0
	roller := func() int {
		v := dice[i%len(dice)]
		i++
		return v
	}

	f.ws = newFakeWS(f.white, f.black)
	f.rooms = memory.NewGameRoomRepository(roller)
	f.uc = NewGameUsecase(f.rooms, f.ws)

	return f
}

func (f *gameFixture) do(t *testing.T, userID uuid.UUID, eventType string, payload any) {
	t.Helper()

	require.NoError(t, f.uc.HandleMessage(context.Background(), userID, mustMessage(eventType, payload)))
}

// lastState - последнее состояние, полученное игроком
func (f *gameFixture) lastState(t *testing.T, userID uuid.UUID) events.GameStateEvent {
	t.Helper()

	states := f.ws.to(userID, events.GameState)
	require.NotEmpty(t, states)

	var st events.GameStateEvent
	require.NoError(t, states[len(states)-1].Decode(&st))

	return st
}

func (f *gameFixture) started(t *testing.T) {
	t.Helper()

	room := events.GameRoomEvent{RoomID: "r1"}
	f.do(t, f.white, events.GameJoin, room)
	f.do(t, f.black, events.GameJoin, room)
	f.do(t, f.black, events.GameStart, room)
}

func TestGameJoinBroadcastsState(t *testing.T) {
	f := newGameFixture(3, 1)
	room := events.GameRoomEvent{RoomID: "r1"}

	f.do(t, f.white, events.GameJoin, room)

	st := f.lastState(t, f.white)
	assert.Equal(t, "waiting", st.Phase)
	assert.Equal(t, map[string]string{"white": f.white.String()}, st.Players)
	assert.Empty(t, f.ws.to(f.black, events.GameState))

	f.do(t, f.black, events.GameJoin, room)

	for _, id := range []uuid.UUID{f.white, f.black} {
		st = f.lastState(t, id)
		assert.Equal(t, "ready", st.Phase)
		assert.Equal(t, f.black.String(), st.Players["black"])
		assert.Equal(t, 2, st.Points[23])
		assert.Equal(t, -2, st.Points[0])
	}
}

func TestGameRollAndMove(t *testing.T) {
	f := newGameFixture(3, 1)
	f.started(t)

	room := events.GameRoomEvent{RoomID: "r1"}

	st := f.lastState(t, f.black)
	assert.Equal(t, "rolling", st.Phase)
	assert.Equal(t, "white", st.CurrentPlayer)

	f.do(t, f.white, events.GameRoll, room)

	st = f.lastState(t, f.black)
	assert.Equal(t, "moving", st.Phase)
	assert.Equal(t, []int{3, 1}, st.Dice)
	assert.Equal(t, []int{5, 7, 12, 23}, st.Moves)

	f.do(t, f.white, events.GameMove, events.GameMoveEvent{RoomID: "r1", From: 7, To: 4})

	st = f.lastState(t, f.white)
	assert.Equal(t, []int{1}, st.Dice)
	assert.Equal(t, 1, st.Points[4])

	f.do(t, f.white, events.GameMove, events.GameMoveEvent{RoomID: "r1", From: 5, To: 4})

	st = f.lastState(t, f.white)
	assert.Equal(t, 2, st.Points[4])
	assert.Equal(t, "rolling", st.Phase)
	assert.Equal(t, "black", st.CurrentPlayer)
	assert.Empty(t, st.Dice)
	assert.Empty(t, st.Moves)
}

func TestGameRuleErrorGoesToOffender(t *testing.T) {
	f := newGameFixture(3, 1)
	f.started(t)
	f.ws.reset()

	f.do(t, f.black, events.GameRoll, events.GameRoomEvent{RoomID: "r1"})

	errs := f.ws.to(f.black, events.GameError)
	require.Len(t, errs, 1)

	var evt events.GameErrorEvent
	require.NoError(t, errs[0].Decode(&evt))
	assert.Equal(t, "r1", evt.RoomID)
	assert.Equal(t, "not your turn", evt.Message)

	assert.Empty(t, f.ws.to(f.white, ""))
	assert.Empty(t, f.ws.to(f.black, events.GameState))
}

func TestGameLeaveForfeits(t *testing.T) {
	f := newGameFixture(3, 1)
	f.started(t)

	f.do(t, f.white, events.GameLeave, events.GameRoomEvent{RoomID: "r1"})

	st := f.lastState(t, f.black)
	assert.Equal(t, "game_over", st.Phase)
	assert.Equal(t, "black", st.Winner)
	assert.NotContains(t, st.Players, "white")

	_, ok := f.rooms.Get("r1")
	assert.True(t, ok)
}

func TestGameDisconnectRemovesEmptyRoom(t *testing.T) {
	f := newGameFixture(3, 1)
	f.started(t)

	ctx := context.Background()

	f.uc.HandleDisconnect(ctx, f.white)
	_, ok := f.rooms.Get("r1")
	require.True(t, ok)

	f.uc.HandleDisconnect(ctx, f.black)
	_, ok = f.rooms.Get("r1")
	assert.False(t, ok)
	assert.Empty(t, f.rooms.List())
}

func TestGameInvalidMessages(t *testing.T) {
	f := newGameFixture(3, 1)
	ctx := context.Background()

	err := f.uc.HandleMessage(ctx, f.white, mustMessage(events.GameJoin, events.GameRoomEvent{RoomID: "  "}))
	assert.ErrorIs(t, err, ErrBadRequest)

	err = f.uc.HandleMessage(ctx, f.white, &events.Message{Type: events.GameRoll, Data: []byte("{")})
	assert.ErrorIs(t, err, ErrBadRequest)

	f.do(t, f.white, events.GameRoll, events.GameRoomEvent{RoomID: "missing"})

	errs := f.ws.to(f.white, events.GameError)
	require.Len(t, errs, 1)

	var evt events.GameErrorEvent
	require.NoError(t, errs[0].Decode(&evt))
	assert.Equal(t, "room not found", evt.Message)

	f.do(t, f.white, events.GameJoin, events.GameRoomEvent{RoomID: "r1"})

	err = f.uc.HandleMessage(ctx, f.white, mustMessage("game-teleport", events.GameRoomEvent{RoomID: "r1"}))
	assert.ErrorIs(t, err, ErrBadRequest)
}
