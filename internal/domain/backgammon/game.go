package backgammon

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Phase - фаза партии: waiting -> ready -> rolling <-> moving -> game_over
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseReady    Phase = "ready"
	PhaseRolling  Phase = "rolling"
	PhaseMoving   Phase = "moving"
	PhaseGameOver Phase = "game_over"
)

// Roller бросает один кубик
type Roller func() int

func DefaultRoller() int {
	return rand.IntN(6) + 1
}

// Move - ход одной шашки. From может быть BarPoint, To может быть OffPoint.
type Move struct {
	From int
	To   int
	Die  int
}

// Game - авторитетное состояние партии. Не потокобезопасен.
type Game struct {
	phase   Phase
	players map[Color]string
	current Color
	dice    []int
	board   Board
	winner  Color
	roll    Roller
}

func NewGame(roll Roller) *Game {
	if roll == nil {
		roll = DefaultRoller
	}

	return &Game{
		phase:   PhaseWaiting,
		players: make(map[Color]string, 2),
		board:   NewBoard(),
		roll:    roll,
	}
}

// State - снимок для рассылки игрокам
type State struct {
	Phase   Phase
	Current Color
	Dice    []int
	Board   Board
	Players map[Color]string
	Winner  Color
}

func (g *Game) State() State {
	players := make(map[Color]string, len(g.players))
	for c, id := range g.players {
		players[c] = id
	}

	return State{
		Phase:   g.phase,
		Current: g.current,
		Dice:    slices.Clone(g.dice),
		Board:   g.board.clone(),
		Players: players,
		Winner:  g.winner,
	}
}

func (g *Game) Phase() Phase { return g.phase }

func (g *Game) ColorOf(userID string) (Color, bool) {
	for c, id := range g.players {
		if id == userID {
			return c, true
		}
	}

	return "", false
}

// Opponent - id второго игрока, пусто если его нет
func (g *Game) Opponent(userID string) string {
	c, ok := g.ColorOf(userID)
	if !ok {
		return ""
	}

	return g.players[c.Opponent()]
}

// Join занимает свободный цвет, первый игрок получает белые. Повторный вход возвращает прежний цвет.
func (g *Game) Join(userID string) (Color, error) {
	if c, ok := g.ColorOf(userID); ok {
		return c, nil
	}

	var c Color
	switch {
	case g.players[White] == "":
		c = White
	case g.players[Black] == "":
		c = Black
	default:
		return "", ErrRoomFull
	}

	g.players[c] = userID

	if g.phase == PhaseWaiting && len(g.players) == 2 {
		g.phase = PhaseReady
	}

	return c, nil
}

// Start начинает новую партию, доступен любому из игроков после сбора обоих или после окончания
func (g *Game) Start(userID string) error {
	if _, ok := g.ColorOf(userID); !ok {
		return ErrNotPlayer
	}

	if len(g.players) < 2 || (g.phase != PhaseReady && g.phase != PhaseGameOver) {
		return fmt.Errorf("%w: start in %s", ErrWrongPhase, g.phase)
	}

	g.board = NewBoard()
	g.current = White
	g.dice = nil
	g.winner = ""
	g.phase = PhaseRolling

	return nil
}

// Roll бросает кубики текущего игрока. Дубль дает четыре хода.
// Если ходов нет, очередь сразу переходит к сопернику; passed сообщает об этом.
func (g *Game) Roll(userID string) (dice []int, passed bool, err error) {
	if err = g.turn(userID, PhaseRolling); err != nil {
		return nil, false, err
	}

	a, b := g.roll(), g.roll()
	dice = []int{a, b}
	if a == b {
		dice = []int{a, a, a, a}
	}

	g.dice = slices.Clone(dice)
	g.phase = PhaseMoving

	if len(g.LegalMoves()) == 0 {
		g.endTurn()
		return dice, true, nil
	}

	return dice, false, nil
}

// Move двигает шашку текущего игрока. Используется наименьший подходящий кубик.
func (g *Game) Move(userID string, from, to int) (Move, error) {
	if err := g.turn(userID, PhaseMoving); err != nil {
		return Move{}, err
	}

	c := g.current

	if to != OffPoint && (to < 0 || to >= Points) {
		return Move{}, ErrInvalidPoint
	}
	if from != BarPoint && (from < 0 || from >= Points) {
		return Move{}, ErrInvalidPoint
	}

	if to != OffPoint && pip(c, to) >= pip(c, from) {
		return Move{}, ErrWrongDirection
	}

	die, err := g.dieFor(c, from, to)
	if err != nil {
		return Move{}, err
	}

	g.board.apply(c, from, to)
	g.useDie(die)

	if g.board.Off[c] == CheckersPer {
		g.winner = c
		g.phase = PhaseGameOver
		g.dice = nil
	} else if len(g.dice) == 0 || len(g.LegalMoves()) == 0 {
		g.endTurn()
	}

	return Move{From: from, To: to, Die: die}, nil
}

// dieFor подбирает кубик для хода. Для вывода берется наименьший подходящий кубик.
func (g *Game) dieFor(c Color, from, to int) (int, error) {
	if to != OffPoint {
		die := pip(c, from) - pip(c, to)
		if !slices.Contains(g.dice, die) {
			return 0, ErrNoMatchingDie
		}

		if _, err := g.board.check(c, from, die); err != nil {
			return 0, err
		}

		return die, nil
	}

	if !g.board.allHome(c) {
		return 0, ErrCannotBearOff
	}

	dice := slices.Clone(g.dice)
	slices.Sort(dice)

	err := ErrNoMatchingDie
	for _, die := range dice {
		if pip(c, from)-die > 0 {
			continue
		}

		var dest int
		if dest, err = g.board.check(c, from, die); err == nil && dest == OffPoint {
			return die, nil
		}
	}

	return 0, err
}

// Leave убирает игрока. Уход во время партии - поражение, победа присуждается сопернику.
func (g *Game) Leave(userID string) (forfeit bool) {
	c, ok := g.ColorOf(userID)
	if !ok {
		return false
	}

	delete(g.players, c)

	switch g.phase {
	case PhaseRolling, PhaseMoving:
		if g.players[c.Opponent()] != "" {
			g.winner = c.Opponent()
			g.phase = PhaseGameOver
			g.dice = nil
			return true
		}
		g.phase = PhaseWaiting
	case PhaseReady:
		g.phase = PhaseWaiting
	}

	return false
}

// Empty - в комнате не осталось игроков
func (g *Game) Empty() bool {
	return len(g.players) == 0
}

// LegalMoves - все допустимые ходы текущего игрока на оставшихся кубиках
func (g *Game) LegalMoves() []Move {
	if g.phase != PhaseMoving {
		return nil
	}

	c := g.current

	sources := []int{BarPoint}
	if g.board.Bar[c] == 0 {
		sources = sources[:0]
		for idx := 0; idx < Points; idx++ {
			if g.board.count(c, idx) > 0 {
				sources = append(sources, idx)
			}
		}
	}

	dice := slices.Clone(g.dice)
	slices.Sort(dice)
	dice = slices.Compact(dice)

	var moves []Move
	for _, die := range dice {
		for _, from := range sources {
			if to, err := g.board.check(c, from, die); err == nil {
				moves = append(moves, Move{From: from, To: to, Die: die})
			}
		}
	}

	return moves
}

func (g *Game) turn(userID string, phase Phase) error {
	c, ok := g.ColorOf(userID)
	if !ok {
		return ErrNotPlayer
	}

	if g.phase != phase {
		return fmt.Errorf("%w: %s in %s", ErrWrongPhase, phase, g.phase)
	}

	if c != g.current {
		return ErrNotYourTurn
	}

	return nil
}

func (g *Game) useDie(die int) {
	if i := slices.Index(g.dice, die); i >= 0 {
		g.dice = slices.Delete(g.dice, i, i+1)
	}
}

func (g *Game) endTurn() {
	g.current = g.current.Opponent()
	g.dice = nil
	g.phase = PhaseRolling
}
