package call

import "errors"

var (
	// ErrMediaAcquisition - нет доступа к камере/микрофону, фатально для сессии
	ErrMediaAcquisition = errors.New("media acquisition failed")
	// ErrNegotiationTimeout - инициатор не дождался инициализации, фатально
	ErrNegotiationTimeout = errors.New("negotiation timeout")
	// ErrNegotiation - ошибка обработки offer/answer, сессия не рвется сразу
	ErrNegotiation = errors.New("negotiation failed")
	// ErrScreenShare - демонстрация экрана не удалась, звонок продолжается
	ErrScreenShare = errors.New("screen share failed")

	ErrDuplicateOffer = errors.New("duplicate offer")
	ErrSessionEnded   = errors.New("session ended")
	ErrBusy           = errors.New("call already in progress")
	ErrNoTrack        = errors.New("no such local track")
	ErrWrongRole      = errors.New("operation not allowed for role")
)

// Fatal - ошибки, после которых сессия завершается
func Fatal(err error) bool {
	return errors.Is(err, ErrMediaAcquisition) || errors.Is(err, ErrNegotiationTimeout)
}
