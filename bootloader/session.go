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

// Package bootloader drives the programming phases of a board already
// running its bootloader.
package bootloader

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/sirupsen/logrus"
)

// Phase is a programming phase. Phases always run in declaration order.
type Phase int

const (
	// PhaseErase clears the program memory
	PhaseErase Phase = iota
	// PhaseProgram writes the firmware
	PhaseProgram
	// PhaseVerify reads back the firmware and compares it
	PhaseVerify
	// PhaseFuseCheck reads the fuses
	PhaseFuseCheck
)

func (p Phase) String() string {
	switch p {
	case PhaseErase:
		return "erase"
	case PhaseProgram:
		return "program"
	case PhaseVerify:
		return "verify"
	case PhaseFuseCheck:
		return "fuse-check"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// VerifySkippedOn is the host OS where the verify phase does not run: there
// the serial driver gives up on the block read answers of the bootloader.
const VerifySkippedOn = "linux"

var hostOS = runtime.GOOS

// VerifyEnabled reports whether the verify phase runs on this host.
func VerifyEnabled() bool {
	return hostOS != VerifySkippedOn
}

// FuseReport contains the fuses read from the board. A mismatch with the
// expected values is advisory and does not fail the session.
type FuseReport struct {
	Low        uint8    `json:"low"`
	High       uint8    `json:"high"`
	Extended   uint8    `json:"extended"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// Match reports whether every expected fuse has the expected value.
func (r *FuseReport) Match() bool {
	return len(r.Mismatches) == 0
}

func (r *FuseReport) String() string {
	res := fmt.Sprintf("low=0x%02x high=0x%02x extended=0x%02x", r.Low, r.High, r.Extended)
	if !r.Match() {
		res += " (" + strings.Join(r.Mismatches, ", ") + ")"
	}
	return res
}

// Driver speaks the bootloader protocol. Every method is a blocking round
// trip with the board.
type Driver interface {
	Erase() error
	Program(image *firmware.Image) error
	Verify(image *firmware.Image) error
	FuseCheck() (*FuseReport, error)
}

// DriverFactory binds a Driver to an open port. It fails if the board does
// not answer or does not match the signature.
type DriverFactory func(port transport.Port, signature profile.Signature) (Driver, error)

// Callbacks observe the progress of Run. Every field is optional.
type Callbacks struct {
	PhaseStarted   func(phase Phase)
	PhaseSkipped   func(phase Phase, reason string)
	PhaseCompleted func(phase Phase)
}

// Outcome is the result of a successful session.
type Outcome struct {
	BytesWritten int
	Verified     bool
	Fuses        *FuseReport
}

// Run programs image on the board attached to port. Phases run in order and
// the first failing phase ends the session with a *PhaseError, nothing is
// retried or rolled back.
func Run(port transport.Port, signature profile.Signature, image *firmware.Image, newDriver DriverFactory, cb *Callbacks) (*Outcome, error) {
	if cb == nil {
		cb = &Callbacks{}
	}
	driver, err := newDriver(port, signature)
	if err != nil {
		return nil, &InitError{Signature: signature, Err: err}
	}

	out := &Outcome{}
	steps := []struct {
		phase Phase
		run   func() error
	}{
		{PhaseErase, driver.Erase},
		{PhaseProgram, func() error {
			if err := driver.Program(image); err != nil {
				return err
			}
			out.BytesWritten = image.Size()
			return nil
		}},
		{PhaseVerify, func() error {
			if err := driver.Verify(image); err != nil {
				return err
			}
			out.Verified = true
			return nil
		}},
		{PhaseFuseCheck, func() error {
			report, err := driver.FuseCheck()
			if err != nil {
				return err
			}
			out.Fuses = report
			return nil
		}},
	}

	for _, step := range steps {
		log := logrus.WithField("phase", step.phase)
		if step.phase == PhaseVerify && !VerifyEnabled() {
			reason := "verify is not supported on " + VerifySkippedOn
			log.Warn("Skipping phase: " + reason)
			if cb.PhaseSkipped != nil {
				cb.PhaseSkipped(step.phase, reason)
			}
			continue
		}

		log.Info("Running phase")
		if cb.PhaseStarted != nil {
			cb.PhaseStarted(step.phase)
		}
		if err := step.run(); err != nil {
			log.WithError(err).Error("Phase failed")
			return nil, &PhaseError{Phase: step.phase, Err: err}
		}
		if cb.PhaseCompleted != nil {
			cb.PhaseCompleted(step.phase)
		}
	}

	if out.Fuses != nil && !out.Fuses.Match() {
		logrus.Warnf("Unexpected fuse values: %s", out.Fuses)
	}
	return out, nil
}
