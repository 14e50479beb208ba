package backgammon

import "errors"

var (
	ErrRoomFull         = errors.New("room is full")
	ErrNotPlayer        = errors.New("not a player in this room")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrWrongPhase       = errors.New("action not allowed in this phase")
	ErrInvalidPoint     = errors.New("invalid point")
	ErrNoChecker        = errors.New("no own checker on source point")
	ErrMustEnterFromBar = errors.New("checkers on the bar must enter first")
	ErrWrongDirection   = errors.New("checkers move only towards home")
	ErrBlocked          = errors.New("destination is blocked")
	ErrNoMatchingDie    = errors.New("no die matches this move")
	ErrCannotBearOff    = errors.New("bearing off requires all checkers at home")
)
