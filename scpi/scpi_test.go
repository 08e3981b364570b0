// Copyright (c) 2024-2026 The visweep developers. All rights reserved.
// Project site: https://github.com/gotmc/visweep
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package scpi

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotmc/visweep"
)

// fakeInstrument answers newline-terminated commands on a loopback socket.
// Commands with an empty reply are recorded but not answered, like a real
// instrument handling a non-query directive.
func fakeInstrument(t *testing.T, replies map[string]string) (addr string, received <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan string, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			line := sc.Text()
			ch <- line
			if resp, ok := replies[line]; ok {
				_, _ = conn.Write([]byte(resp))
			}
		}
	}()
	return ln.Addr().String(), ch
}

func TestConnCommand(t *testing.T) {
	addr, received := fakeInstrument(t, nil)
	c, err := Dial(addr, WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Command("INSTrument:NSELect %d", 3))
	require.NoError(t, c.Command("OUTPut ON"))

	assert.Equal(t, "INSTrument:NSELect 3", <-received)
	assert.Equal(t, "OUTPut ON", <-received)
}

func TestConnQueryCleansResponse(t *testing.T) {
	addr, received := fakeInstrument(t, map[string]string{
		"MEASure:VOLTage?": "  1.1989e+02\x00\x00\r\n",
	})
	c, err := Dial(addr, WithTimeout(2*time.Second))
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Query("MEASure:VOLTage?")
	require.NoError(t, err)
	assert.Equal(t, "1.1989e+02", got)
	assert.Equal(t, "MEASure:VOLTage?", <-received)
}

func TestConnQueryTimeout(t *testing.T) {
	// The fake never answers SOURce:SAFety?, so the read deadline fires.
	addr, _ := fakeInstrument(t, nil)
	c, err := Dial(addr, WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Query("SOURce:SAFety?")
	require.Error(t, err)
	var terr *visweep.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, terr.Op, "SOURce:SAFety?")
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Dial(addr, WithTimeout(time.Second))
	require.Error(t, err)
	var terr *visweep.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "dial", terr.Op)
}

func TestConnCloseIdempotent(t *testing.T) {
	addr, _ := fakeInstrument(t, nil)
	c, err := Dial(addr)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	// Exchanges after close fail with a transport error rather than
	// panicking.
	err = c.Command("OUTPut OFF")
	var terr *visweep.TransportError
	assert.ErrorAs(t, err, &terr)
}
