package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints()

	assert.Equal(t, 640, c.Width)
	assert.Equal(t, 480, c.Height)
	assert.InDelta(t, 30, c.FrameRate, 0)
	assert.Equal(t, 48000, c.SampleRate)
}
