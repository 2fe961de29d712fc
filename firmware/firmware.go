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

package firmware

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/sirupsen/logrus"
)

// ErrorKind tells why a firmware could not be obtained.
type ErrorKind int

const (
	// NotFound the locator points to nothing
	NotFound ErrorKind = iota
	// TransportError the firmware could not be fetched
	TransportError
	// MalformedImage the firmware data can not be parsed
	MalformedImage
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case TransportError:
		return "transport error"
	case MalformedImage:
		return "malformed image"
	}
	return "unknown"
}

// ResolveError is returned when the firmware is unreachable or unparsable.
type ResolveError struct {
	Locator string
	Kind    ErrorKind
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("firmware %s: %s: %s", e.Locator, e.Kind, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Padding is the value of unprogrammed flash bytes.
const Padding = 0xFF

// Image is the program to write on the board. Data starts at address 0,
// gaps between segments are filled with Padding.
type Image struct {
	Data     []byte
	Segments map[uint32][]byte
}

// Size is the number of bytes to program.
func (i *Image) Size() int {
	return len(i.Data)
}

// Parse converts the content of a firmware file into an Image. Files with a
// .bin extension are taken as raw program bytes, anything else is parsed as
// Intel HEX.
func Parse(name string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, &ResolveError{Locator: name, Kind: MalformedImage, Err: fmt.Errorf("empty firmware")}
	}
	if strings.HasSuffix(strings.ToLower(name), ".bin") {
		return &Image{
			Data:     data,
			Segments: map[uint32][]byte{0: data},
		}, nil
	}

	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(data)); err != nil {
		return nil, &ResolveError{Locator: name, Kind: MalformedImage, Err: err}
	}
	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, &ResolveError{Locator: name, Kind: MalformedImage, Err: fmt.Errorf("no data in hex file")}
	}

	img := &Image{Segments: map[uint32][]byte{}}
	end := uint32(0)
	for _, seg := range segments {
		img.Segments[seg.Address] = seg.Data
		if segEnd := seg.Address + uint32(len(seg.Data)); segEnd > end {
			end = segEnd
		}
	}
	img.Data = mem.ToBinary(0, end, Padding)
	logrus.WithField("firmware", name).Debugf("Parsed %d segments, %d bytes", len(segments), end)
	return img, nil
}

// Load resolves the locator and parses the result.
func Load(r Resolver, locator string) (*Image, error) {
	data, err := r.Resolve(locator)
	if err != nil {
		return nil, err
	}
	name, _ := SplitChecksum(locator)
	return Parse(name, data)
}
