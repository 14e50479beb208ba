package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceStatus(t *testing.T) {
	assert.Equal(t, "microphone enabled: false", deviceStatus("microphone", true))
	assert.Equal(t, "microphone enabled: true", deviceStatus("microphone", false))
	assert.Equal(t, "camera enabled: false", deviceStatus("camera", true))
}
