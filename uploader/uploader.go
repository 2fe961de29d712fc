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

// Package uploader runs complete upload attempts: firmware resolution,
// reset into the bootloader, connection and programming session.
package uploader

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arduino/avr109-uploader/bootloader"
	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/reset"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/sirupsen/logrus"
)

// ConnectError is returned when the bootloader port can't be opened after
// the reset.
type ConnectError struct {
	Port     string
	BaudRate int
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to bootloader on %s at %d baud: %s", e.Port, e.BaudRate, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Callbacks observe an upload. Every field is optional.
type Callbacks struct {
	StageChanged   func(from, to Stage)
	PhaseStarted   func(phase bootloader.Phase)
	PhaseSkipped   func(phase bootloader.Phase, reason string)
	PhaseCompleted func(phase bootloader.Phase)
	Reset          reset.Callbacks
}

// Result is the outcome of a successful upload.
type Result struct {
	Board        string                 `json:"board"`
	Port         string                 `json:"port"`
	BytesWritten int                    `json:"bytes_written"`
	Verified     bool                   `json:"verified"`
	Fuses        *bootloader.FuseReport `json:"fuses,omitempty"`
	Stages       []Stage                `json:"stages"`
}

// Data implements feedback.Result
func (r *Result) Data() interface{} {
	return r
}

func (r *Result) String() string {
	res := fmt.Sprintf("Uploaded %d bytes to %s on %s", r.BytesWritten, r.Board, r.Port)
	if r.Verified {
		res += ", verified"
	} else {
		res += ", not verified"
	}
	if r.Fuses != nil {
		res += "\nFuses: " + r.Fuses.String()
	}
	return res
}

// Uploader uploads firmware to boards reachable through a Transport. It
// keeps one connection per port and allows one attempt at a time on each.
type Uploader struct {
	transport transport.Transport
	resolver  firmware.Resolver
	protocols map[string]Protocol
	cb        *Callbacks

	mu          sync.Mutex
	connections map[string]*transport.Connection
}

// Option configures an Uploader
type Option func(*Uploader)

// WithResolver replaces the default firmware resolver
func WithResolver(r firmware.Resolver) Option {
	return func(u *Uploader) { u.resolver = r }
}

// WithProtocol registers a bootloader protocol under name, replacing any
// protocol registered with the same name.
func WithProtocol(name string, p Protocol) Option {
	return func(u *Uploader) { u.protocols[name] = p }
}

// WithCallbacks sets the callbacks notified during every upload
func WithCallbacks(cb *Callbacks) Option {
	return func(u *Uploader) { u.cb = cb }
}

// New creates an Uploader on tr. The avr109 protocol is always available
// unless replaced with WithProtocol.
func New(tr transport.Transport, opts ...Option) *Uploader {
	u := &Uploader{
		transport:   tr,
		resolver:    firmware.NewResolver(),
		protocols:   map[string]Protocol{},
		cb:          &Callbacks{},
		connections: map[string]*transport.Connection{},
	}
	for _, opt := range opts {
		opt(u)
	}
	if _, ok := u.protocols[profile.DefaultProtocol]; !ok {
		u.protocols[profile.DefaultProtocol] = NewAVR109(tr, &u.cb.Reset)
	}
	return u
}

// Protocols returns the names of the registered protocols
func (u *Uploader) Protocols() []string {
	res := []string{}
	for name := range u.protocols {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func (u *Uploader) connection(port string) *transport.Connection {
	u.mu.Lock()
	defer u.mu.Unlock()
	conn, ok := u.connections[port]
	if !ok {
		conn = transport.NewConnection(port, 0)
		u.connections[port] = conn
	}
	return conn
}

// Upload writes the firmware found at locator to the board described by p.
// The port used for programming is left open, the next attempt on the same
// port discards it during the reset.
func (u *Uploader) Upload(p *profile.Profile, locator string) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	proto, ok := u.protocols[p.Protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported bootloader protocol %s, available: %s", p.Protocol, strings.Join(u.Protocols(), ", "))
	}

	conn := u.connection(p.Port)
	if err := conn.Begin(); err != nil {
		return nil, err
	}
	defer conn.End()
	// every attempt starts from the port and baudrate of the profile, a
	// previous attempt may have followed the board to another port
	conn.Options = transport.Options{PortName: p.Port, BaudRate: p.BaudRate}

	log := logrus.WithField("board", p.Name).WithField("port", p.Port)
	a := newAttempt(u.cb.StageChanged)

	log.Infof("Loading firmware %s", locator)
	image, err := firmware.Load(u.resolver, locator)
	a.advance(err)
	if err != nil {
		log.WithError(err).Error("Loading firmware")
		return nil, err
	}

	err = proto.Reset(conn, p)
	a.advance(err)
	if err != nil {
		log.WithError(err).Error("Resetting board")
		return nil, err
	}

	conn.Discard()
	if err := conn.Open(u.transport); err != nil {
		cerr := &ConnectError{Port: conn.Options.PortName, BaudRate: conn.Options.BaudRate, Err: err}
		a.advance(cerr)
		log.WithError(cerr).Error("Connecting to bootloader")
		return nil, cerr
	}
	a.advance(nil)

	out, err := bootloader.Run(conn.Port, p.Signature, image, proto.Driver(p), &bootloader.Callbacks{
		PhaseStarted:   u.cb.PhaseStarted,
		PhaseSkipped:   u.cb.PhaseSkipped,
		PhaseCompleted: u.cb.PhaseCompleted,
	})
	a.advance(err)
	if err != nil {
		return nil, err
	}

	log.Infof("Upload completed, %d bytes written", out.BytesWritten)
	return &Result{
		Board:        p.Name,
		Port:         conn.Options.PortName,
		BytesWritten: out.BytesWritten,
		Verified:     out.Verified,
		Fuses:        out.Fuses,
		Stages:       a.Trace,
	}, nil
}

// UploadAsync runs Upload in a new goroutine and calls done once with its
// outcome.
func (u *Uploader) UploadAsync(p *profile.Profile, locator string, done func(*Result, error)) {
	go func() {
		done(u.Upload(p, locator))
	}()
}

// Close releases the ports left open by previous uploads. It fails if an
// upload is still running.
func (u *Uploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	idle := []*transport.Connection{}
	for name, conn := range u.connections {
		if err := conn.Begin(); err != nil {
			for _, c := range idle {
				c.End()
			}
			return fmt.Errorf("closing %s: %w", name, err)
		}
		idle = append(idle, conn)
	}
	for name, conn := range u.connections {
		conn.Discard()
		conn.End()
		delete(u.connections, name)
	}
	return nil
}
