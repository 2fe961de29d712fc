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

package flasher

import (
	"fmt"

	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
)

type FlasherError struct {
	err string
}

func (e FlasherError) Error() string {
	return e.err
}

// SignatureMismatchError is returned when the board is not the expected one.
type SignatureMismatchError struct {
	Expected profile.Signature
	Actual   profile.Signature
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("signature mismatch: expected %s, board reports %s", e.Expected, e.Actual)
}

// VerifyError is returned when the flash content differs from the image.
type VerifyError struct {
	Address  int
	Expected byte
	Actual   byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at 0x%04x: expected 0x%02x, read 0x%02x", e.Address, e.Expected, e.Actual)
}

// serialFillBuffer fills buffer with data coming from serial port.
// Blocks until the buffer is full.
func serialFillBuffer(port transport.Port, buffer []byte) error {
	read := 0
	for read < len(buffer) {
		n, err := port.Read(buffer[read:])
		if err != nil {
			return err
		}
		if n == 0 {
			return &FlasherError{err: "Serial port timed out waiting for the bootloader"}
		}
		read += n
	}
	return nil
}

func sendCommand(port transport.Port, payload []byte) error {
	for len(payload) > 0 {
		sent, err := port.Write(payload)
		if err != nil {
			return err
		}
		payload = payload[sent:]
	}
	return nil
}
