// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package scpi provides a raw-socket SCPI endpoint: ASCII commands
// terminated by a newline over TCP, one bounded read per query. Grid
// simulators and similar mains instruments expose this on port 5025.
package scpi

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gotmc/visweep"
)

// readBufSize bounds a single query response.
const readBufSize = 4096

// DefaultTimeout applies to the dial and to each command/query exchange.
const DefaultTimeout = 10 * time.Second

// Option applies an option to a Conn before it dials.
type Option func(*Conn)

// WithTimeout sets the dial and per-exchange I/O deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) { c.timeout = d }
}

// Conn is a TCP SCPI endpoint. It implements visweep.Endpoint. A Conn is
// not safe for concurrent use; the sweep issues one exchange at a time.
type Conn struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
	buf     []byte
	once    sync.Once
}

// Dial connects to the instrument at host:port.
func Dial(addr string, opts ...Option) (*Conn, error) {
	c := &Conn{
		addr:    addr,
		timeout: DefaultTimeout,
		buf:     make([]byte, readBufSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, &visweep.TransportError{Endpoint: c.name(), Op: "dial", Err: err}
	}
	c.conn = conn
	return c, nil
}

func (c *Conn) name() string { return "scpi " + c.addr }

// Command formats according to a format specifier if provided and sends one
// newline-terminated directive. No response is read.
func (c *Conn) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = strings.TrimSpace(cmd)
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("command %q", cmd), Err: err}
	}
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("command %q", cmd), Err: err}
	}
	return nil
}

// Query sends the directive and performs a single read of up to 4 KiB,
// returning the response stripped of trailing whitespace and NUL padding.
func (c *Conn) Query(cmd string) (string, error) {
	if err := c.Command(cmd); err != nil {
		return "", err
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("query %q", cmd), Err: err}
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return "", &visweep.TransportError{Endpoint: c.name(), Op: fmt.Sprintf("query %q", cmd), Err: err}
	}
	return visweep.Clean(string(c.buf[:n])), nil
}

// Close releases the connection. Safe to call more than once; any close
// error is suppressed.
func (c *Conn) Close() error {
	c.once.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
	return nil
}
