/*
	avr109-uploader
	Copyright (c) 2024 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Port is an open serial line to the board. Reads return 0 bytes and no
// error once the read timeout set by the Transport expires.
type Port interface {
	io.ReadWriteCloser
	SetDTR(dtr bool) error
}

// PortDetails describes a serial port as reported by the OS enumeration.
type PortDetails struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Transport opens serial ports and lists the ones currently registered.
type Transport interface {
	Open(portName string, baudRate int) (Port, error)
	Ports() ([]*PortDetails, error)
}

// PortUnavailableError is returned when a port can not be opened.
type PortUnavailableError struct {
	Port     string
	BaudRate int
	Err      error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("port %s unavailable at %d baud: %s", e.Port, e.BaudRate, e.Err)
}

func (e *PortUnavailableError) Unwrap() error {
	return e.Err
}

// Options are the parameters used to open the port of a Connection.
type Options struct {
	PortName string
	BaudRate int
}

// ErrAttemptActive is returned by Begin when another upload attempt is
// still running on the same connection.
var ErrAttemptActive = errors.New("an upload attempt is already running on this connection")

// Connection holds the port currently in use for a board together with the
// options used to open it. The port may be swapped during an upload attempt,
// only one attempt at a time can use a Connection.
type Connection struct {
	Port    Port
	Options Options

	attempt sync.Mutex
}

// NewConnection creates a Connection with no open port.
func NewConnection(portName string, baudRate int) *Connection {
	return &Connection{
		Options: Options{PortName: portName, BaudRate: baudRate},
	}
}

// Begin marks the start of an upload attempt.
func (c *Connection) Begin() error {
	if !c.attempt.TryLock() {
		return ErrAttemptActive
	}
	return nil
}

// End marks the end of the attempt started with Begin.
func (c *Connection) End() {
	c.attempt.Unlock()
}

// Discard closes and forgets the current port, if any. The board may have
// already dropped the port while rebooting, so close errors are only logged.
func (c *Connection) Discard() {
	if c.Port == nil {
		return
	}
	if err := c.Port.Close(); err != nil {
		logrus.WithField("port", c.Options.PortName).WithError(err).Debug("Closing discarded port")
	}
	c.Port = nil
}

// Open opens a fresh port using the current options and stores it in the
// connection.
func (c *Connection) Open(tr Transport) error {
	port, err := tr.Open(c.Options.PortName, c.Options.BaudRate)
	if err != nil {
		return err
	}
	c.Port = port
	return nil
}
