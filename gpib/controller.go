// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package gpib drives an instrument behind a Prologix-style GPIB
// controller-in-charge attached over a serial port. The controller accepts
// ++-prefixed configuration commands locally and forwards everything else
// to the addressed instrument, which makes it a visweep.Endpoint for any
// GPIB device.
package gpib

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gotmc/visweep"
)

// Controller models a GPIB controller-in-charge.
type Controller struct {
	rw               io.ReadWriter
	r                *bufio.Reader
	primaryAddr      int
	hasSecondaryAddr bool
	secondaryAddr    int
	auto             bool
	usbTerm          byte
	eotChar          byte
	readTimeout      time.Duration
	writeDelay       time.Duration
	debug            bool // if true, log commands and responses
	closer           io.Closer
	closed           bool
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController creates a GPIB controller-in-charge for the instrument at
// the given primary address using the given Prologix driver, which can be a
// Virtual COM Port (VCP), USB direct, or Ethernet. Enable clear to send the
// Selected Device Clear (SDC) message to the GPIB address.
func NewController(
	rw io.ReadWriter,
	addr int,
	clear bool,
	opts ...ControllerOption,
) (*Controller, error) {
	c := Controller{
		rw:          rw,
		primaryAddr: addr,
		auto:        false,
		usbTerm:     '\n',
		eotChar:     '\n',
		readTimeout: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&c)
	}
	c.r = bufio.NewReader(rw)

	if !isPrimaryAddressValid(c.primaryAddr) {
		return nil, fmt.Errorf("invalid primary address %d (must be 0-30)", c.primaryAddr)
	}
	addrCmd := fmt.Sprintf("addr %d", c.primaryAddr)
	if c.hasSecondaryAddr {
		if !isSecondaryAddressValid(c.secondaryAddr) {
			return nil, fmt.Errorf("invalid secondary address %d (must be 96-126)", c.secondaryAddr)
		}
		addrCmd = fmt.Sprintf("addr %d %d", c.primaryAddr, c.secondaryAddr)
	}

	// Configure the Prologix GPIB controller.
	cmds := []string{
		"verbose 0", // turn off verbosity if on
		"savecfg 0", // disable saving of configuration parameters in EPROM
		addrCmd,     // set the primary (and optional secondary) address
		"mode 1",    // switch to controller mode
		"auto 0",    // turn off read-after-write and address instrument to listen
		"eoi 1",     // enable EOI assertion with last character
		"eos 0",     // set GPIB termination
		fmt.Sprintf("read_tmo_ms %d", c.readTimeout.Milliseconds()),
		fmt.Sprintf("eot_char %d", c.eotChar),
		"eot_enable 1", // append the EOT char when EOI is detected
	}
	if clear {
		cmds = append(cmds, "clr")
	}
	for _, cmd := range cmds {
		if err := c.CommandController(cmd); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// WithSecondaryAddress sets a secondary address, which must be in the range
// of 96 and 126, inclusive.
func WithSecondaryAddress(addr int) ControllerOption {
	return func(c *Controller) {
		c.hasSecondaryAddr = true
		c.secondaryAddr = addr
	}
}

// WithReadTimeout sets the Prologix read timeout used while waiting for an
// instrument response.
func WithReadTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.readTimeout = d }
}

// WithWriteDelay pauses after every instrument command. Some instruments
// drop commands that arrive back to back.
func WithWriteDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.writeDelay = d }
}

// WithDebug causes commands and responses to be logged.
func WithDebug() ControllerOption { return func(c *Controller) { c.debug = true } }

func (c *Controller) name() string {
	return fmt.Sprintf("gpib addr %d", c.primaryAddr)
}

// Command formats according to a format specifier if provided and sends a
// SCPI/ASCII command to the instrument at the currently assigned GPIB
// address. Leading and trailing whitespace is removed before the USB
// terminator is appended.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	if c.debug {
		log.Printf("gpib cmd %q", cmd)
	}
	if _, err := fmt.Fprintf(c.rw, "%s%c", cmd, c.usbTerm); err != nil {
		return &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("command %q", cmd), Err: err}
	}
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	return nil
}

// Query queries the instrument at the currently assigned GPIB address.
// Since read-after-write is disabled, the Prologix controller is told to
// read the response with `++read eoi`. The response is read up to the EOT
// char and returned stripped of trailing whitespace and NUL bytes.
func (c *Controller) Query(cmd string) (string, error) {
	if err := c.Command(cmd); err != nil {
		return "", err
	}
	if !c.auto {
		if err := c.CommandController("read eoi"); err != nil {
			return "", err
		}
	}
	s, err := c.r.ReadString(c.eotChar)
	if err != nil && err != io.EOF {
		return "", &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("query %q", cmd), Err: err}
	}
	if c.debug {
		log.Printf("gpib query %q -> %q", cmd, s)
	}
	return visweep.Clean(s), nil
}

// CommandController sends the given command to the Prologix controller. To
// indicate this is a command for the controller, thereby not transmitting
// to the instrument over GPIB, two plus signs `++` are prepended, and a new
// line is appended to act as the USB termination character.
func (c *Controller) CommandController(cmd string) error {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	if c.debug {
		log.Printf("gpib ctrl %q", cmd)
	}
	if _, err := fmt.Fprintf(c.rw, "++%s%c", cmd, c.usbTerm); err != nil {
		return &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("controller command %q", cmd), Err: err}
	}
	return nil
}

// QueryController sends the given ++-prefixed command to the Prologix
// controller and returns its response.
func (c *Controller) QueryController(cmd string) (string, error) {
	if err := c.CommandController(cmd); err != nil {
		return "", err
	}
	s, err := c.r.ReadString(c.eotChar)
	if err != nil && err != io.EOF {
		return "", &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("controller query %q", cmd), Err: err}
	}
	return visweep.Clean(s), nil
}

// FrontPanel enables (true) or locks out (false) local front-panel control
// of the addressed instrument.
func (c *Controller) FrontPanel(local bool) error {
	if local {
		return c.CommandController("loc")
	}
	return c.CommandController("llo")
}

// Close returns the instrument to local front-panel control and, when the
// controller owns the serial port (see Open), releases it. Idempotent; any
// errors are logged and suppressed.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.FrontPanel(true); err != nil {
		log.Printf("gpib: returning front panel to local: %s", err)
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			log.Printf("gpib: closing port: %s", err)
		}
	}
	return nil
}

// isPrimaryAddressValid checks that the primary GPIB address is between 0
// and 30, inclusive.
func isPrimaryAddressValid(addr int) bool {
	return addr >= 0 && addr <= 30
}

// isSecondaryAddressValid checks that the secondary GPIB address is between
// 96 and 126, inclusive.
func isSecondaryAddressValid(addr int) bool {
	return addr >= 96 && addr <= 126
}
