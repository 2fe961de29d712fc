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

// Package reset forces a board running its application into the bootloader
// by touching the serial port at a sentinel baudrate.
package reset

import (
	"errors"
	"fmt"
	"time"

	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

const (
	// DTRSettleDelay is how long DTR is kept low, the bootloader watchdog
	// needs to see the line drop.
	DTRSettleDelay = 250 * time.Millisecond
	// PollInterval is the delay between two port enumerations.
	PollInterval = 100 * time.Millisecond
	// PollAttempts bounds the number of port enumerations.
	PollAttempts = 15
	// TardyDelay is waited after every reset sequence, successful or not:
	// some AVR109 bootloaders are not listening yet when the port reappears.
	TardyDelay = 500 * time.Millisecond
)

var sleep = time.Sleep

// ErrPortTimeout is returned when the board port does not reappear after
// the reset.
var ErrPortTimeout = errors.New("could not reconnect after resetting board")

// Step is a step of the reset sequence.
type Step int

const (
	// StepOpen opens the port at the reset baudrate
	StepOpen Step = iota
	// StepDTR cycles the DTR line
	StepDTR
	// StepPoll waits for the port to reappear
	StepPoll
)

func (s Step) String() string {
	switch s {
	case StepOpen:
		return "open"
	case StepDTR:
		return "dtr"
	case StepPoll:
		return "poll"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ResetError reports the first failing step of the reset sequence.
type ResetError struct {
	Step Step
	Port string
	Err  error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("resetting board on %s (%s): %s", e.Port, e.Step, e.Err)
}

func (e *ResetError) Unwrap() error {
	return e.Err
}

// Callbacks observe the progress of Reset. Every field is optional.
type Callbacks struct {
	// TouchingPort is called before opening port at the reset baudrate
	TouchingPort func(port string, baudRate int)
	// WaitingForPort is called when polling for the port starts
	WaitingForPort func()
	// PortFound is called with the port the board reappeared on
	PortFound func(port string)
	// Debug reports messages useful for debugging purposes
	Debug func(msg string)
}

// Sequencer runs the reset sequence through a Transport.
type Sequencer struct {
	transport transport.Transport
	cb        *Callbacks
}

// New creates a Sequencer, cb may be nil.
func New(tr transport.Transport, cb *Callbacks) *Sequencer {
	if cb == nil {
		cb = &Callbacks{}
	}
	return &Sequencer{transport: tr, cb: cb}
}

// Reset reboots the board attached to conn into the bootloader. On return
// conn.Port holds the port opened at the reset baudrate and conn.Options
// holds the port and baudrate to use for programming: the caller must
// discard the former and open the latter.
func (s *Sequencer) Reset(conn *transport.Connection, p *profile.Profile) error {
	err := s.run(conn, p)
	// some leos are just plain tardy
	sleep(TardyDelay)
	return err
}

func (s *Sequencer) run(conn *transport.Connection, p *profile.Profile) error {
	log := logrus.WithField("port", conn.Options.PortName)

	// the port left open by a previous upload would prevent the touch
	conn.Discard()

	log.Infof("Resetting board at %d baud", p.ResetBaudRate)
	if s.cb.TouchingPort != nil {
		s.cb.TouchingPort(conn.Options.PortName, p.ResetBaudRate)
	}
	port, err := s.transport.Open(conn.Options.PortName, p.ResetBaudRate)
	if err != nil {
		return &ResetError{Step: StepOpen, Port: conn.Options.PortName, Err: err}
	}
	conn.Port = port

	if err := cycleDTR(port); err != nil {
		return &ResetError{Step: StepDTR, Port: conn.Options.PortName, Err: err}
	}

	conn.Options.BaudRate = p.BaudRate

	return s.pollForPort(conn, p)
}

func cycleDTR(port transport.Port) error {
	if err := port.SetDTR(false); err != nil {
		return fmt.Errorf("setting DTR off: %w", err)
	}
	sleep(DTRSettleDelay)
	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("setting DTR on: %w", err)
	}
	return nil
}

// pollForPort waits for the board to be enumerated again. Boards with known
// product ids are matched by id since the OS may assign a new port name.
func (s *Sequencer) pollForPort(conn *transport.Connection, p *profile.Profile) error {
	if s.cb.WaitingForPort != nil {
		s.cb.WaitingForPort()
	}
	match := func(d *transport.PortDetails) bool {
		if len(p.ProductIDs) > 0 {
			return d.IsUSB && p.HasProductID(d.PID)
		}
		return d.Name == conn.Options.PortName
	}

	for attempt := 1; attempt <= PollAttempts; attempt++ {
		ports, err := s.transport.Ports()
		if err != nil {
			s.debug(fmt.Sprintf("poll %d: listing ports: %s", attempt, err))
		} else if i := slices.IndexFunc(ports, match); i >= 0 {
			found := ports[i].Name
			if found != conn.Options.PortName {
				logrus.WithField("port", conn.Options.PortName).Infof("Board moved to port %s", found)
				conn.Options.PortName = found
			}
			if s.cb.PortFound != nil {
				s.cb.PortFound(found)
			}
			return nil
		} else {
			s.debug(fmt.Sprintf("poll %d: board not found in %d ports", attempt, len(ports)))
		}
		sleep(PollInterval)
	}
	return &ResetError{Step: StepPoll, Port: conn.Options.PortName, Err: ErrPortTimeout}
}

func (s *Sequencer) debug(msg string) {
	logrus.Debug(msg)
	if s.cb.Debug != nil {
		s.cb.Debug(msg)
	}
}
