// Package game - клиентская сторона пошаговой партии в нарды.
// Правила проверяет сервер, клиент только не дает отправить заведомо чужой ход.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/qrave1/PeerCall/internal/application/constant"
	"github.com/qrave1/PeerCall/internal/domain/backgammon"
	"github.com/qrave1/PeerCall/internal/domain/events"
	"github.com/qrave1/PeerCall/internal/signaling"
)

// NoSelection - источник хода не выбран
const NoSelection = -1

const defaultErrorTTL = 3 * time.Second

type Config struct {
	RoomID    string
	LocalID   string
	Transport signaling.Transport
	Clock     clock.Clock
	Logger    *slog.Logger
	// ErrorTTL - сколько показывается ошибка, по умолчанию 3s
	ErrorTTL time.Duration
	// OnChange вызывается после каждого изменения View
	OnChange func(View)
}

// View - то, что видит игрок
type View struct {
	RoomID  string
	Phase   backgammon.Phase
	Current backgammon.Color
	Color   backgammon.Color
	Dice    []int
	// Movable - пункты, с которых у текущего игрока есть допустимый ход
	Movable  []int
	Points   [backgammon.Points]int
	Bar      map[string]int
	Off      map[string]int
	Winner   backgammon.Color
	Selected int
	Error    string
}

type Client struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	state    events.GameStateEvent
	color    backgammon.Color
	selected int
	errMsg   string
	errSeq   int
	errTimer *clock.Timer
	subs     signaling.Subscriptions
	closed   bool
}

func NewClient(cfg Config) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = defaultErrorTTL
	}

	return &Client{
		cfg:      cfg,
		log:      cfg.Logger.With(slog.String(constant.RoomID, cfg.RoomID)),
		state:    events.GameStateEvent{RoomID: cfg.RoomID, Phase: string(backgammon.PhaseWaiting)},
		selected: NoSelection,
	}
}

// Join подписывается на состояние комнаты и входит в нее
func (c *Client) Join(ctx context.Context) error {
	c.mu.Lock()
	c.subs.On(c.cfg.Transport, events.GameState, c.onState)
	c.subs.On(c.cfg.Transport, events.GameError, c.onError)
	c.mu.Unlock()

	return c.send(ctx, events.GameJoin, events.GameRoomEvent{RoomID: c.cfg.RoomID})
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	phase := backgammon.Phase(c.state.Phase)
	if phase != backgammon.PhaseReady && phase != backgammon.PhaseGameOver {
		err := fmt.Errorf("%w: start in %s", backgammon.ErrWrongPhase, phase)
		c.showErrorLocked(err.Error())
		c.mu.Unlock()
		c.notify()

		return err
	}
	c.mu.Unlock()

	return c.send(ctx, events.GameStart, events.GameRoomEvent{RoomID: c.cfg.RoomID})
}

// Roll - бросок доступен только текущему игроку в фазе rolling
func (c *Client) Roll(ctx context.Context) error {
	if err := c.ensureTurn(backgammon.PhaseRolling); err != nil {
		return err
	}

	return c.send(ctx, events.GameRoll, events.GameRoomEvent{RoomID: c.cfg.RoomID})
}

// Select - выбор пункта в фазе moving. Первый выбор задает источник, повторный выбор того же
// пункта снимает его, выбор другого пункта отправляет ход. После попытки хода выбор сбрасывается.
func (c *Client) Select(ctx context.Context, point int) error {
	if err := c.ensureTurn(backgammon.PhaseMoving); err != nil {
		return err
	}

	c.mu.Lock()

	switch {
	case c.selected == NoSelection:
		if !c.ownsLocked(point) {
			c.showErrorLocked(backgammon.ErrNoChecker.Error())
			c.mu.Unlock()
			c.notify()

			return backgammon.ErrNoChecker
		}

		c.selected = point
		c.mu.Unlock()
		c.notify()

		return nil
	case c.selected == point:
		c.selected = NoSelection
		c.mu.Unlock()
		c.notify()

		return nil
	}

	from := c.selected
	c.selected = NoSelection
	c.mu.Unlock()
	c.notify()

	return c.send(ctx, events.GameMove, events.GameMoveEvent{RoomID: c.cfg.RoomID, From: from, To: point})
}

// Close сообщает о выходе из комнаты и отписывается. Повторный вызов ничего не делает.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.subs.Cancel()
	if c.errTimer != nil {
		c.errTimer.Stop()
	}
	c.mu.Unlock()

	return c.cfg.Transport.Send(ctx, events.GameLeave, events.GameRoomEvent{RoomID: c.cfg.RoomID}, "")
}

func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked()
}

func (c *Client) viewLocked() View {
	return View{
		RoomID:   c.cfg.RoomID,
		Phase:    backgammon.Phase(c.state.Phase),
		Current:  backgammon.Color(c.state.CurrentPlayer),
		Color:    c.color,
		Dice:     slices.Clone(c.state.Dice),
		Movable:  slices.Clone(c.state.Moves),
		Points:   c.state.Points,
		Bar:      c.state.Bar,
		Off:      c.state.Off,
		Winner:   backgammon.Color(c.state.Winner),
		Selected: c.selected,
		Error:    c.errMsg,
	}
}

func (c *Client) onState(in signaling.Inbound) {
	var evt events.GameStateEvent
	if err := in.Decode(&evt); err != nil {
		c.log.Warn("decode game state", slog.Any(constant.Error, err))
		return
	}
	if evt.RoomID != c.cfg.RoomID {
		return
	}

	c.mu.Lock()
	prev := c.state
	c.state = evt

	c.color = ""
	for color, userID := range evt.Players {
		if userID == c.cfg.LocalID {
			c.color = backgammon.Color(color)
		}
	}

	if prev.Phase != evt.Phase || prev.CurrentPlayer != evt.CurrentPlayer {
		c.selected = NoSelection
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Client) onError(in signaling.Inbound) {
	var evt events.GameErrorEvent
	if err := in.Decode(&evt); err != nil || evt.RoomID != c.cfg.RoomID {
		return
	}

	c.mu.Lock()
	c.showErrorLocked(evt.Message)
	c.mu.Unlock()

	c.notify()
}

func (c *Client) ensureTurn(phase backgammon.Phase) error {
	c.mu.Lock()

	var err error
	switch {
	case backgammon.Phase(c.state.Phase) != phase:
		err = fmt.Errorf("%w: %s in %s", backgammon.ErrWrongPhase, phase, c.state.Phase)
	case c.color == "" || string(c.color) != c.state.CurrentPlayer:
		err = backgammon.ErrNotYourTurn
	}

	if err == nil {
		c.mu.Unlock()
		return nil
	}

	c.showErrorLocked(err.Error())
	c.mu.Unlock()
	c.notify()

	return err
}

// ownsLocked - на пункте (или на баре) есть шашка своего цвета
func (c *Client) ownsLocked(point int) bool {
	if point == backgammon.BarPoint {
		return c.state.Bar[string(c.color)] > 0
	}

	if point < 0 || point >= backgammon.Points {
		return false
	}

	n := c.state.Points[point]
	if c.color == backgammon.White {
		return n > 0
	}

	return n < 0
}

// showErrorLocked показывает сообщение на ErrorTTL, новая ошибка продлевает показ
func (c *Client) showErrorLocked(msg string) {
	c.errMsg = msg
	c.errSeq++
	seq := c.errSeq

	if c.errTimer != nil {
		c.errTimer.Stop()
	}

	c.errTimer = c.cfg.Clock.AfterFunc(c.cfg.ErrorTTL, func() {
		c.mu.Lock()
		if c.errSeq != seq {
			c.mu.Unlock()
			return
		}
		c.errMsg = ""
		c.mu.Unlock()

		c.notify()
	})
}

func (c *Client) notify() {
	if c.cfg.OnChange == nil {
		return
	}

	c.cfg.OnChange(c.View())
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	if err := c.cfg.Transport.Send(ctx, event, payload, ""); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}

	return nil
}
