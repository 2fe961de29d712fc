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

package uploader

import (
	"github.com/arduino/avr109-uploader/bootloader"
	"github.com/arduino/avr109-uploader/flasher"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/reset"
	"github.com/arduino/avr109-uploader/transport"
)

// Protocol is a bootloader family: how a board is reset into the
// bootloader and which driver runs the programming phases.
type Protocol interface {
	// Reset reboots the board into the bootloader. On return conn.Options
	// must describe the port to program through.
	Reset(conn *transport.Connection, p *profile.Profile) error
	// Driver returns the factory of the drivers for boards described by p.
	Driver(p *profile.Profile) bootloader.DriverFactory
}

// AVR109 is the Protocol of boards resetting on a 1200 baud touch, like
// the Caterina bootloader.
type AVR109 struct {
	sequencer *reset.Sequencer
}

// NewAVR109 creates the AVR109 protocol, cb may be nil.
func NewAVR109(tr transport.Transport, cb *reset.Callbacks) *AVR109 {
	return &AVR109{sequencer: reset.New(tr, cb)}
}

// Reset implements Protocol
func (a *AVR109) Reset(conn *transport.Connection, p *profile.Profile) error {
	return a.sequencer.Reset(conn, p)
}

// Driver implements Protocol
func (a *AVR109) Driver(p *profile.Profile) bootloader.DriverFactory {
	return flasher.NewDriverFactory(p)
}
