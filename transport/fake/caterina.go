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

package fake

import "sync"

// Caterina emulates the AVR109 bootloader of an ATmega32u4. Use Handle as
// the Handler of a Port.
type Caterina struct {
	Signature [3]byte
	Fuses     [3]byte
	Flash     []byte
	BlockSize int
	// FlipRead corrupts the first byte returned by the next block read
	FlipRead bool
	// Silent makes the bootloader ignore every command
	Silent bool

	mu       sync.Mutex
	address  int
	pending  []byte
	erases   int
	commands []byte
}

// NewCaterina returns an erased ATmega32u4 with the Leonardo fuses.
func NewCaterina() *Caterina {
	d := &Caterina{
		Signature: [3]byte{0x1e, 0x95, 0x87},
		Fuses:     [3]byte{0xff, 0xd8, 0xcb},
		Flash:     make([]byte, 32768),
		BlockSize: 128,
	}
	for i := range d.Flash {
		d.Flash[i] = 0xff
	}
	return d
}

// Port returns a Port answering with the bootloader.
func (d *Caterina) Port(name string, baudRate int) *Port {
	return &Port{Name: name, BaudRate: baudRate, Handler: d.Handle}
}

// Commands returns the command bytes received so far.
func (d *Caterina) Commands() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.commands...)
}

// Erases is the number of chip erases received.
func (d *Caterina) Erases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.erases
}

// Handle consumes the bytes written by the host and returns the answers to
// every complete command.
func (d *Caterina) Handle(in []byte) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Silent {
		return nil
	}
	d.pending = append(d.pending, in...)
	var out []byte
	for len(d.pending) > 0 {
		cmd := d.pending[0]
		need := 1
		switch cmd {
		case 'A':
			need = 3
		case 'B', 'g':
			need = 4
			if cmd == 'B' && len(d.pending) >= 4 {
				need += int(d.pending[1])<<8 | int(d.pending[2])
			}
		}
		if len(d.pending) < need {
			return out
		}
		args := d.pending[1:need]
		d.pending = d.pending[need:]
		d.commands = append(d.commands, cmd)

		switch cmd {
		case 'S':
			out = append(out, "CATERIN"...)
		case 'V':
			out = append(out, '1', '0')
		case 'b':
			out = append(out, 'Y', byte(d.BlockSize>>8), byte(d.BlockSize))
		case 'P', 'L', 'E':
			out = append(out, '\r')
		case 's':
			out = append(out, d.Signature[2], d.Signature[1], d.Signature[0])
		case 'e':
			d.erases++
			for i := range d.Flash {
				d.Flash[i] = 0xff
			}
			out = append(out, '\r')
		case 'A':
			d.address = (int(args[0])<<8 | int(args[1])) * 2
			out = append(out, '\r')
		case 'B':
			data := args[3:]
			for i, b := range data {
				// programming can only clear bits
				d.Flash[d.address+i] &= b
			}
			d.address += len(data)
			out = append(out, '\r')
		case 'g':
			size := int(args[0])<<8 | int(args[1])
			block := append([]byte(nil), d.Flash[d.address:d.address+size]...)
			if d.FlipRead {
				block[0] ^= 0xff
				d.FlipRead = false
			}
			d.address += size
			out = append(out, block...)
		case 'F':
			out = append(out, d.Fuses[0])
		case 'N':
			out = append(out, d.Fuses[1])
		case 'Q':
			out = append(out, d.Fuses[2])
		default:
			out = append(out, '?')
		}
	}
	return out
}
