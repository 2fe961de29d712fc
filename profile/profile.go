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

package profile

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultProtocol is used by profiles that do not name a bootloader protocol.
	DefaultProtocol = "avr109"
	// DefaultResetBaudRate is the sentinel baudrate that reboots AVR109 boards
	// into the bootloader.
	DefaultResetBaudRate = 1200
)

//go:embed boards.yaml
var builtinBoards []byte

// Signature identifies the chip family of the board.
type Signature []byte

// ParseSignature parses an hex string like "1e9587".
func ParseSignature(s string) (Signature, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("empty signature")
	}
	return Signature(sig), nil
}

func (s Signature) String() string {
	return hex.EncodeToString(s)
}

// Equal reports whether the two signatures are the same
func (s Signature) Equal(other Signature) bool {
	return bytes.Equal(s, other)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *Signature) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	sig, err := ParseSignature(str)
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// MarshalText implements encoding.TextMarshaler, used by the JSON output
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Signature) UnmarshalText(text []byte) error {
	sig, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (s Signature) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Fuses are the expected values of the fuse bytes, nil means "don't care".
type Fuses struct {
	Low      *uint8 `yaml:"low,omitempty" json:"low,omitempty"`
	High     *uint8 `yaml:"high,omitempty" json:"high,omitempty"`
	Extended *uint8 `yaml:"extended,omitempty" json:"extended,omitempty"`
}

// Profile describes the board to upload to. It must not be modified while an
// upload is running.
type Profile struct {
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description" json:"description"`
	Protocol      string    `yaml:"protocol" json:"protocol"`
	Signature     Signature `yaml:"signature" json:"signature"`
	Port          string    `yaml:"port,omitempty" json:"port,omitempty"`
	BaudRate      int       `yaml:"baud_rate" json:"baud_rate"`
	ResetBaudRate int       `yaml:"reset_baud_rate" json:"reset_baud_rate"`
	ProductIDs    []string  `yaml:"product_ids" json:"product_ids"`
	FlashSize     int       `yaml:"flash_size" json:"flash_size"`
	Fuses         Fuses     `yaml:"fuses" json:"fuses"`
}

// WithPort returns a copy of the profile bound to the given port.
func (p *Profile) WithPort(port string) *Profile {
	res := *p
	res.Port = port
	return &res
}

// HasProductID reports whether pid is one of the USB product ids of the board.
func (p *Profile) HasProductID(pid string) bool {
	for _, id := range p.ProductIDs {
		if strings.EqualFold(strings.TrimPrefix(id, "0x"), strings.TrimPrefix(pid, "0x")) {
			return true
		}
	}
	return false
}

// Validate checks that the profile can be used for an upload.
func (p *Profile) Validate() error {
	switch {
	case len(p.Signature) == 0:
		return fmt.Errorf("profile %s: missing signature", p.Name)
	case p.Port == "":
		return fmt.Errorf("profile %s: missing port", p.Name)
	case p.BaudRate <= 0:
		return fmt.Errorf("profile %s: invalid baud rate %d", p.Name, p.BaudRate)
	case p.ResetBaudRate <= 0:
		return fmt.Errorf("profile %s: invalid reset baud rate %d", p.Name, p.ResetBaudRate)
	case p.ResetBaudRate == p.BaudRate:
		return fmt.Errorf("profile %s: reset baud rate must differ from baud rate", p.Name)
	}
	return nil
}

type boardsFile struct {
	Boards []*Profile `yaml:"boards"`
}

// Parse reads a list of profiles from YAML data.
func Parse(data []byte) ([]*Profile, error) {
	var f boardsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for _, p := range f.Boards {
		if p.Name == "" {
			return nil, fmt.Errorf("board without name")
		}
		if p.Protocol == "" {
			p.Protocol = DefaultProtocol
		}
		if p.ResetBaudRate == 0 {
			p.ResetBaudRate = DefaultResetBaudRate
		}
	}
	return f.Boards, nil
}

// Load reads the profiles from a YAML boards file.
func Load(file *paths.Path) ([]*Profile, error) {
	data, err := file.ReadFile()
	if err != nil {
		return nil, err
	}
	boards, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading boards from %s: %w", file, err)
	}
	logrus.WithField("file", file).Debugf("Loaded %d boards", len(boards))
	return boards, nil
}

// Builtin returns the profiles of the boards known out of the box.
func Builtin() []*Profile {
	boards, err := Parse(builtinBoards)
	if err != nil {
		panic(fmt.Sprintf("invalid builtin boards: %s", err))
	}
	return boards
}

// Find returns the profile with the given name, or nil.
func Find(boards []*Profile, name string) *Profile {
	for _, b := range boards {
		if strings.EqualFold(b.Name, name) {
			return b
		}
	}
	return nil
}
