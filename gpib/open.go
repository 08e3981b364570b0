// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package gpib

import (
	"time"

	"go.bug.st/serial"
)

// Open opens the serial port of a Prologix VCP controller at 115200 8N1 and
// creates a controller-in-charge for the instrument at addr. The port is
// released when the controller is closed.
func Open(port string, addr int, clear bool, opts ...ControllerOption) (*Controller, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	// The port read timeout backstops the Prologix read_tmo_ms; it only
	// fires when the adapter itself stops answering.
	if err := p.SetReadTimeout(5 * time.Second); err != nil {
		_ = p.Close()
		return nil, err
	}
	c, err := NewController(p, addr, clear, opts...)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	c.closer = p
	return c, nil
}
