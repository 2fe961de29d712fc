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

package bootloader

import (
	"errors"
	"testing"

	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/arduino/avr109-uploader/transport/fake"
	"github.com/stretchr/testify/require"
)

type recordingDriver struct {
	calls  []string
	failAt string
	fuses  *FuseReport
}

func (d *recordingDriver) call(name string) error {
	d.calls = append(d.calls, name)
	if d.failAt == name {
		return errors.New(name + " exploded")
	}
	return nil
}

func (d *recordingDriver) Erase() error                        { return d.call("erase") }
func (d *recordingDriver) Program(image *firmware.Image) error { return d.call("program") }
func (d *recordingDriver) Verify(image *firmware.Image) error  { return d.call("verify") }
func (d *recordingDriver) FuseCheck() (*FuseReport, error) {
	if err := d.call("fuse-check"); err != nil {
		return nil, err
	}
	if d.fuses != nil {
		return d.fuses, nil
	}
	return &FuseReport{Low: 0xff, High: 0xd8, Extended: 0xcb}, nil
}

var signature = profile.Signature{0x1e, 0x95, 0x87}

func factoryFor(d *recordingDriver) DriverFactory {
	return func(port transport.Port, sig profile.Signature) (Driver, error) {
		return d, nil
	}
}

func withHost(t *testing.T, goos string) {
	prev := hostOS
	hostOS = goos
	t.Cleanup(func() { hostOS = prev })
}

func testImage() *firmware.Image {
	return &firmware.Image{Data: make([]byte, 1024)}
}

func TestPhaseOrder(t *testing.T) {
	withHost(t, "windows")
	d := &recordingDriver{}
	var started []Phase
	cb := &Callbacks{PhaseStarted: func(p Phase) { started = append(started, p) }}

	out, err := Run(&fake.Port{}, signature, testImage(), factoryFor(d), cb)
	require.NoError(t, err)
	require.Equal(t, []string{"erase", "program", "verify", "fuse-check"}, d.calls)
	require.Equal(t, []Phase{PhaseErase, PhaseProgram, PhaseVerify, PhaseFuseCheck}, started)
	require.True(t, out.Verified)
	require.Equal(t, 1024, out.BytesWritten)
	require.True(t, out.Fuses.Match())
}

func TestVerifyPlatformGate(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows", "freebsd"} {
		t.Run(goos, func(t *testing.T) {
			withHost(t, goos)
			d := &recordingDriver{}
			var skipped []Phase
			cb := &Callbacks{PhaseSkipped: func(p Phase, reason string) {
				require.NotEmpty(t, reason)
				skipped = append(skipped, p)
			}}

			out, err := Run(&fake.Port{}, signature, testImage(), factoryFor(d), cb)
			require.NoError(t, err)
			if goos == VerifySkippedOn {
				require.Equal(t, []string{"erase", "program", "fuse-check"}, d.calls)
				require.Equal(t, []Phase{PhaseVerify}, skipped)
				require.False(t, out.Verified)
				require.False(t, VerifyEnabled())
			} else {
				require.Equal(t, []string{"erase", "program", "verify", "fuse-check"}, d.calls)
				require.Empty(t, skipped)
				require.True(t, out.Verified)
				require.True(t, VerifyEnabled())
			}
		})
	}
}

func TestShortCircuit(t *testing.T) {
	withHost(t, "darwin")
	tests := []struct {
		failAt string
		phase  Phase
		calls  []string
	}{
		{"erase", PhaseErase, []string{"erase"}},
		{"program", PhaseProgram, []string{"erase", "program"}},
		{"verify", PhaseVerify, []string{"erase", "program", "verify"}},
		{"fuse-check", PhaseFuseCheck, []string{"erase", "program", "verify", "fuse-check"}},
	}
	for _, test := range tests {
		t.Run(test.failAt, func(t *testing.T) {
			d := &recordingDriver{failAt: test.failAt}
			out, err := Run(&fake.Port{}, signature, testImage(), factoryFor(d), nil)
			require.Nil(t, out)
			var phaseErr *PhaseError
			require.ErrorAs(t, err, &phaseErr)
			require.Equal(t, test.phase, phaseErr.Phase)
			require.EqualError(t, phaseErr.Err, test.failAt+" exploded")
			require.Equal(t, test.calls, d.calls)
		})
	}
}

func TestInitFailure(t *testing.T) {
	d := &recordingDriver{}
	factory := func(port transport.Port, sig profile.Signature) (Driver, error) {
		return nil, errors.New("signature mismatch")
	}
	_, err := Run(&fake.Port{}, signature, testImage(), factory, nil)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, signature, initErr.Signature)
	require.Empty(t, d.calls)
}

func TestFuseMismatchIsAdvisory(t *testing.T) {
	withHost(t, "windows")
	d := &recordingDriver{fuses: &FuseReport{Low: 0xff, High: 0xd9, Extended: 0xcb, Mismatches: []string{"high: expected 0xd8, read 0xd9"}}}

	out, err := Run(&fake.Port{}, signature, testImage(), factoryFor(d), nil)
	require.NoError(t, err)
	require.False(t, out.Fuses.Match())
	require.Contains(t, out.Fuses.String(), "expected 0xd8")
}
