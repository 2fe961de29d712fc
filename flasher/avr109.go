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

	"github.com/arduino/avr109-uploader/bootloader"
	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/sirupsen/logrus"
)

// AVR109 command set, see Atmel application note AVR109.
const (
	cmdSoftwareID     = 'S'
	cmdSoftwareVer    = 'V'
	cmdBlockSupport   = 'b'
	cmdEnterProgMode  = 'P'
	cmdReadSignature  = 's'
	cmdChipErase      = 'e'
	cmdSetAddress     = 'A'
	cmdBlockLoad      = 'B'
	cmdBlockRead      = 'g'
	cmdReadLowFuse    = 'F'
	cmdReadHighFuse   = 'N'
	cmdReadExtFuse    = 'Q'
	memTypeFlash      = 'F'
	ack               = '\r'
	defaultBlockSize  = 128
	softwareIDLength  = 7
	signatureLength   = 3
	blockSupportReply = 'Y'
)

// AVR109 drives a board running an AVR109 bootloader, like the Caterina
// bootloader of the Leonardo.
type AVR109 struct {
	port       transport.Port
	signature  profile.Signature
	blockSize  int
	flashSize  int
	fuses      profile.Fuses
	SoftwareID string
	Version    string
}

// Option configures an AVR109 driver
type Option func(*AVR109)

// WithFlashSize rejects images bigger than size bytes
func WithFlashSize(size int) Option {
	return func(f *AVR109) { f.flashSize = size }
}

// WithExpectedFuses sets the fuse values checked by FuseCheck
func WithExpectedFuses(fuses profile.Fuses) Option {
	return func(f *AVR109) { f.fuses = fuses }
}

// NewAVR109 synchronizes with the bootloader on port, enters programming
// mode and checks that the chip has the given signature.
func NewAVR109(port transport.Port, signature profile.Signature, opts ...Option) (*AVR109, error) {
	f := &AVR109{port: port, signature: signature, blockSize: defaultBlockSize}
	for _, opt := range opts {
		opt(f)
	}

	id, err := f.query([]byte{cmdSoftwareID}, softwareIDLength)
	if err != nil {
		return nil, fmt.Errorf("reading software identifier: %w", err)
	}
	f.SoftwareID = string(id)

	ver, err := f.query([]byte{cmdSoftwareVer}, 2)
	if err != nil {
		return nil, fmt.Errorf("reading software version: %w", err)
	}
	f.Version = fmt.Sprintf("%c.%c", ver[0], ver[1])
	logrus.Infof("Found bootloader %s version %s", f.SoftwareID, f.Version)

	block, err := f.query([]byte{cmdBlockSupport}, 3)
	if err != nil {
		return nil, fmt.Errorf("reading block size: %w", err)
	}
	if block[0] != blockSupportReply {
		return nil, &FlasherError{err: "Bootloader does not support block mode"}
	}
	// flash is written by words, a block must hold at least one
	size := int(block[1])<<8 | int(block[2])
	if size < 2 {
		return nil, &FlasherError{err: fmt.Sprintf("Invalid bootloader block size %d", size)}
	}
	f.blockSize = size &^ 1
	logrus.Debugf("Using block size %d", f.blockSize)

	if err := f.expectAck([]byte{cmdEnterProgMode}); err != nil {
		return nil, fmt.Errorf("entering programming mode: %w", err)
	}

	sig, err := f.query([]byte{cmdReadSignature}, signatureLength)
	if err != nil {
		return nil, fmt.Errorf("reading signature: %w", err)
	}
	// the signature is sent starting from the last byte
	actual := profile.Signature{sig[2], sig[1], sig[0]}
	if !actual.Equal(signature) {
		return nil, &SignatureMismatchError{Expected: signature, Actual: actual}
	}
	return f, nil
}

// Erase the whole application flash
func (f *AVR109) Erase() error {
	logrus.Debug("Erasing chip")
	return f.expectAck([]byte{cmdChipErase})
}

// Program writes the image in blocks starting from address 0
func (f *AVR109) Program(image *firmware.Image) error {
	data := padded(image.Data)
	if f.flashSize > 0 && len(data) > f.flashSize {
		return fmt.Errorf("firmware size %d exceeds flash size %d", len(data), f.flashSize)
	}

	for addr := 0; addr < len(data); addr += f.blockSize {
		end := addr + f.blockSize
		if end > len(data) {
			end = len(data)
		}
		logrus.Tracef("Writing block 0x%04x-0x%04x", addr, end)
		if err := f.setAddress(addr); err != nil {
			return err
		}
		block := data[addr:end]
		cmd := append([]byte{cmdBlockLoad, byte(len(block) >> 8), byte(len(block)), memTypeFlash}, block...)
		if err := f.expectAck(cmd); err != nil {
			return fmt.Errorf("writing block at 0x%04x: %w", addr, err)
		}
	}
	return nil
}

// Verify reads back the flash and compares it with the image
func (f *AVR109) Verify(image *firmware.Image) error {
	data := padded(image.Data)
	for addr := 0; addr < len(data); addr += f.blockSize {
		end := addr + f.blockSize
		if end > len(data) {
			end = len(data)
		}
		if err := f.setAddress(addr); err != nil {
			return err
		}
		size := end - addr
		read, err := f.query([]byte{cmdBlockRead, byte(size >> 8), byte(size), memTypeFlash}, size)
		if err != nil {
			return fmt.Errorf("reading block at 0x%04x: %w", addr, err)
		}
		for i, b := range read {
			if b != data[addr+i] {
				return &VerifyError{Address: addr + i, Expected: data[addr+i], Actual: b}
			}
		}
	}
	return nil
}

// FuseCheck reads the fuses and compares them with the expected values
func (f *AVR109) FuseCheck() (*bootloader.FuseReport, error) {
	report := &bootloader.FuseReport{}
	fuses := []struct {
		name     string
		cmd      byte
		value    *uint8
		expected *uint8
	}{
		{"low", cmdReadLowFuse, &report.Low, f.fuses.Low},
		{"high", cmdReadHighFuse, &report.High, f.fuses.High},
		{"extended", cmdReadExtFuse, &report.Extended, f.fuses.Extended},
	}
	for _, fuse := range fuses {
		res, err := f.query([]byte{fuse.cmd}, 1)
		if err != nil {
			return nil, fmt.Errorf("reading %s fuse: %w", fuse.name, err)
		}
		*fuse.value = res[0]
		if fuse.expected != nil && *fuse.expected != res[0] {
			report.Mismatches = append(report.Mismatches,
				fmt.Sprintf("%s: expected 0x%02x, read 0x%02x", fuse.name, *fuse.expected, res[0]))
		}
	}
	return report, nil
}

// setAddress sets the flash address, the bootloader wants word addresses
func (f *AVR109) setAddress(byteAddress int) error {
	word := byteAddress / 2
	if err := f.expectAck([]byte{cmdSetAddress, byte(word >> 8), byte(word)}); err != nil {
		return fmt.Errorf("setting address 0x%04x: %w", byteAddress, err)
	}
	return nil
}

func (f *AVR109) query(cmd []byte, replyLength int) ([]byte, error) {
	if err := sendCommand(f.port, cmd); err != nil {
		return nil, err
	}
	res := make([]byte, replyLength)
	if err := serialFillBuffer(f.port, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *AVR109) expectAck(cmd []byte) error {
	res, err := f.query(cmd, 1)
	if err != nil {
		return err
	}
	if res[0] != ack {
		return &FlasherError{err: fmt.Sprintf("Command '%c' not acknowledged, got 0x%02x", cmd[0], res[0])}
	}
	return nil
}

// padded returns data with an even length, as the flash is written by words
func padded(data []byte) []byte {
	if len(data)%2 == 0 {
		return data
	}
	return append(append([]byte(nil), data...), firmware.Padding)
}

var _ bootloader.Driver = (*AVR109)(nil)

// NewDriverFactory returns the bootloader.DriverFactory for boards described
// by p.
func NewDriverFactory(p *profile.Profile) bootloader.DriverFactory {
	return func(port transport.Port, signature profile.Signature) (bootloader.Driver, error) {
		return NewAVR109(port, signature, WithFlashSize(p.FlashSize), WithExpectedFuses(p.Fuses))
	}
}
