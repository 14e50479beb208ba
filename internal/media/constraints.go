package media

import "errors"

// ErrUnsupported - захват устройств недоступен на этой платформе
var ErrUnsupported = errors.New("media capture is not supported on this platform")

// Constraints - параметры захвата.
// Эхо- и шумоподавления тут нет: у драйверов mediadevices нет DSP, звук идет как есть.
type Constraints struct {
	Width     int
	Height    int
	FrameRate float64

	SampleRate int
}

func DefaultConstraints() Constraints {
	return Constraints{
		Width:      640,
		Height:     480,
		FrameRate:  30,
		SampleRate: 48000,
	}
}
