package find

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGPIBFilter(t *testing.T) {
	assert.True(t, GPIBFilter(&TTY{Mfg: "Prologix"}))
	assert.True(t, GPIBFilter(&TTY{Product: "GPIB-USB Controller"}))
	assert.False(t, GPIBFilter(&TTY{Mfg: "FTDI", Product: "FT232R USB UART"}))
}

func TestSerialFilter(t *testing.T) {
	f := SerialFilter("PXFA1B2C")
	assert.True(t, f(&TTY{Serial: "PXFA1B2C"}))
	assert.False(t, f(&TTY{Serial: "PXZZZZZZ"}))
	assert.False(t, f(&TTY{}))
}
