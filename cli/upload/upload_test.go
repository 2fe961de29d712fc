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

package upload

import (
	"errors"
	"fmt"
	"testing"

	"github.com/arduino/avr109-uploader/bootloader"
	"github.com/arduino/avr109-uploader/cli/feedback"
	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/reset"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/arduino/avr109-uploader/uploader"
	"github.com/stretchr/testify/require"
)

func TestExitCodes(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		err       error
		code      feedback.ExitCode
		retryable bool
	}{
		{&firmware.ResolveError{Kind: firmware.NotFound, Err: cause}, feedback.ErrBadFirmware, false},
		{&firmware.ResolveError{Kind: firmware.MalformedImage, Err: cause}, feedback.ErrBadFirmware, false},
		{&firmware.ResolveError{Kind: firmware.TransportError, Err: cause}, feedback.ErrNetwork, true},
		{&reset.ResetError{Step: reset.StepPoll, Err: reset.ErrPortTimeout}, feedback.ErrBoardNotFound, true},
		{&uploader.ConnectError{Port: "COM7", Err: cause}, feedback.ErrBoardNotFound, true},
		{&bootloader.InitError{Err: cause}, feedback.ErrUpload, true},
		{fmt.Errorf("wrapped: %w", &bootloader.PhaseError{Phase: bootloader.PhaseErase, Err: cause}), feedback.ErrUpload, true},
		{transport.ErrAttemptActive, feedback.ErrGeneric, false},
	}
	for _, test := range tests {
		t.Run(test.err.Error(), func(t *testing.T) {
			require.Equal(t, test.code, exitCode(test.err))
			require.Equal(t, test.retryable, retryable(test.err))
		})
	}
}
