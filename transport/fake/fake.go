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

// Package fake provides an in-memory transport.Transport for tests.
package fake

import (
	"bytes"
	"errors"
	"sync"

	"github.com/arduino/avr109-uploader/transport"
)

// ErrClosed is returned by operations on a closed Port.
var ErrClosed = errors.New("port closed")

// Transport records every open and serves scripted port lists.
type Transport struct {
	// PortLists is consumed one entry per Ports call, the last entry is
	// repeated once the script is exhausted.
	PortLists [][]*transport.PortDetails
	// PortsErr is returned by Ports when set.
	PortsErr error
	// OnOpen is called for every new port before it is returned; returning an
	// error makes Open fail.
	OnOpen func(p *Port) error

	mu         sync.Mutex
	opened     []*Port
	portsCalls int
}

// Open implements transport.Transport
func (t *Transport) Open(portName string, baudRate int) (transport.Port, error) {
	p := &Port{Name: portName, BaudRate: baudRate}
	if t.OnOpen != nil {
		if err := t.OnOpen(p); err != nil {
			return nil, &transport.PortUnavailableError{Port: portName, BaudRate: baudRate, Err: err}
		}
	}
	t.mu.Lock()
	t.opened = append(t.opened, p)
	t.mu.Unlock()
	return p, nil
}

// Ports implements transport.Transport
func (t *Transport) Ports() ([]*transport.PortDetails, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portsCalls++
	if t.PortsErr != nil {
		return nil, t.PortsErr
	}
	if len(t.PortLists) == 0 {
		return nil, nil
	}
	i := t.portsCalls - 1
	if i >= len(t.PortLists) {
		i = len(t.PortLists) - 1
	}
	return t.PortLists[i], nil
}

// Opened returns the ports opened so far, in order.
func (t *Transport) Opened() []*Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Port(nil), t.opened...)
}

// PortsCalls is the number of times Ports has been called.
func (t *Transport) PortsCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.portsCalls
}

var _ transport.Port = (*Port)(nil)

// Port is an in-memory transport.Port. Bytes written are passed to Handler,
// whatever it returns becomes readable.
type Port struct {
	Name     string
	BaudRate int
	Handler  func(written []byte) []byte
	DTRErr   error

	mu      sync.Mutex
	dtr     []bool
	closed  bool
	rx      bytes.Buffer
	written bytes.Buffer
}

func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	if p.rx.Len() == 0 {
		// behaves like a read timeout
		return 0, nil
	}
	return p.rx.Read(buf)
}

func (p *Port) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrClosed
	}
	p.written.Write(buf)
	if p.Handler != nil {
		p.rx.Write(p.Handler(append([]byte(nil), buf...)))
	}
	return len(buf), nil
}

// Close implements io.Closer
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	return nil
}

// SetDTR records the requested DTR level.
func (p *Port) SetDTR(dtr bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DTRErr != nil {
		return p.DTRErr
	}
	p.dtr = append(p.dtr, dtr)
	return nil
}

// DTR returns the DTR levels set so far.
func (p *Port) DTR() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.dtr...)
}

// IsClosed reports whether Close has been called.
func (p *Port) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Written returns every byte written to the port.
func (p *Port) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}
