package usecase

import "errors"

// Ошибки уровня бизнес-логики, хендлеры переводят их в HTTP статусы или события error
var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)
