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
	"os"
	"time"

	"github.com/arduino/avr109-uploader/bootloader"
	"github.com/arduino/avr109-uploader/cli/arguments"
	"github.com/arduino/avr109-uploader/cli/common"
	"github.com/arduino/avr109-uploader/cli/feedback"
	"github.com/arduino/avr109-uploader/cli/globals"
	"github.com/arduino/avr109-uploader/firmware"
	"github.com/arduino/avr109-uploader/reset"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/arduino/avr109-uploader/uploader"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	commonFlags arguments.Flags // contains board, address and boards file
	retries     int
	fwFile      string
	checksum    string
)

// NewCommand creates a new `upload` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "upload",
		Short: "Uploads a firmware to an AVR109 board.",
		Long:  "Resets the board into its bootloader and uploads the specified firmware, a local Intel HEX or binary file or an http(s) URL.",
		Example: "" +
			"  " + os.Args[0] + " upload --board leonardo --address COM10 --input-file Blink.hex\n" +
			"  " + os.Args[0] + " upload -b micro -a /dev/ttyACM0 -i https://example.com/firmware/Blink.hex\n" +
			"  " + os.Args[0] + " upload -b custom -a COM3 -i Blink.bin --boards-file boards.yaml\n",
		Args: cobra.NoArgs,
		Run:  runUpload,
	}
	commonFlags.AddToCommand(command)
	command.Flags().IntVar(&retries, "retries", globals.DefaultRetries, "Number of attempts in case of upload failure")
	command.Flags().StringVarP(&fwFile, "input-file", "i", "", "Path or URL of the firmware to upload")
	command.Flags().StringVar(&checksum, "checksum", "", "Expected checksum of the firmware, e.g.: SHA-256:9f86d081884c7d65...")
	return command
}

func runUpload(cmd *cobra.Command, args []string) {
	if retries < 1 {
		feedback.Fatal("Number of retries should be at least 1", feedback.ErrBadArgument)
	}
	if fwFile == "" {
		feedback.Fatal("Error during upload: missing firmware file", feedback.ErrBadArgument)
	}
	common.CheckFlags(commonFlags.Board, commonFlags.Address)
	boards := common.LoadBoards(commonFlags.BoardsFile)
	board := common.GetBoard(boards, commonFlags.Board, commonFlags.Address)
	locator := fwFile
	if checksum != "" {
		locator += "#" + checksum
	}

	// the programming port is not closed here, the process exit releases it
	u := uploader.New(transport.Serial{}, uploader.WithCallbacks(progressCallbacks()))

	for retry := 1; ; retry++ {
		logrus.Infof("Uploading firmware (try %d of %d)", retry, retries)
		res, err := u.Upload(board, locator)
		if err == nil {
			feedback.PrintResult(res)
			logrus.Info("Operation completed: success! :-)")
			return
		}
		logrus.Error(err)

		if retry >= retries || !retryable(err) {
			feedback.Fatal(fmt.Sprintf("Error during upload: %s", err), exitCode(err))
			return
		}
		feedback.Printf("Upload failed: %s", err)
		logrus.Info("Waiting 1 second before retrying...")
		time.Sleep(globals.RetryDelay)
	}
}

func progressCallbacks() *uploader.Callbacks {
	return &uploader.Callbacks{
		PhaseStarted: func(phase bootloader.Phase) {
			feedback.Printf("Running %s...", phase)
		},
		PhaseSkipped: func(phase bootloader.Phase, reason string) {
			feedback.Warnf("%s skipped: %s", phase, reason)
		},
		Reset: reset.Callbacks{
			TouchingPort: func(port string, baudRate int) {
				feedback.Printf("Resetting board on %s at %d baud...", port, baudRate)
			},
			WaitingForPort: func() {
				feedback.Printf("Waiting for the bootloader...")
			},
			PortFound: func(port string) {
				feedback.Printf("Bootloader found on %s", port)
			},
			Debug: func(msg string) {
				logrus.Trace(msg)
			},
		},
	}
}

// retryable reports whether a new attempt may succeed where err occurred. A
// missing or broken firmware fails the same way every time.
func retryable(err error) bool {
	var resolveErr *firmware.ResolveError
	if errors.As(err, &resolveErr) {
		return resolveErr.Kind == firmware.TransportError
	}
	return !errors.Is(err, transport.ErrAttemptActive)
}

// exitCode maps an upload error to the exit code of the process
func exitCode(err error) feedback.ExitCode {
	var (
		resolveErr *firmware.ResolveError
		resetErr   *reset.ResetError
		connectErr *uploader.ConnectError
		initErr    *bootloader.InitError
		phaseErr   *bootloader.PhaseError
	)
	switch {
	case errors.As(err, &resolveErr):
		if resolveErr.Kind == firmware.TransportError {
			return feedback.ErrNetwork
		}
		return feedback.ErrBadFirmware
	case errors.As(err, &resetErr), errors.As(err, &connectErr):
		return feedback.ErrBoardNotFound
	case errors.As(err, &initErr), errors.As(err, &phaseErr):
		return feedback.ErrUpload
	}
	return feedback.ErrGeneric
}
