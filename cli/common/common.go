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

package common

import (
	"fmt"
	"os"

	"github.com/arduino/avr109-uploader/cli/feedback"
	"github.com/arduino/avr109-uploader/cli/globals"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
)

// LoadBoards returns the board profiles found in boardsFile followed by the
// builtin ones. When boardsFile is empty the file named by the
// AVR109_UPLOADER_BOARDS_FILE environment variable is used, if any.
func LoadBoards(boardsFile string) []*profile.Profile {
	if boardsFile == "" {
		boardsFile = os.Getenv(globals.BoardsFileEnv)
	}
	boards := []*profile.Profile{}
	if boardsFile != "" {
		custom, err := profile.Load(paths.New(boardsFile))
		if err != nil {
			feedback.Fatal(fmt.Sprintf("Can't load boards file: %s", err), feedback.ErrBadArgument)
		}
		logrus.Debugf("loaded %d boards from %s", len(custom), boardsFile)
		boards = append(boards, custom...)
	}
	return append(boards, profile.Builtin()...)
}

// CheckFlags runs a basic check, errors if the flags are not defined
func CheckFlags(board, address string) {
	if board == "" {
		feedback.Fatal("Error during upload: missing board name", feedback.ErrBadArgument)
	}
	if address == "" {
		feedback.Fatal("Error during upload: missing board address", feedback.ErrBadArgument)
	}
	logrus.Debugf("board: %s, address: %s", board, address)
}

// GetBoard is an helper function useful to get the profile of the named
// board bound to the given port
func GetBoard(boards []*profile.Profile, name, address string) *profile.Profile {
	board := profile.Find(boards, name)
	if board == nil {
		feedback.Fatal(fmt.Sprintf("Can't find board %s", name), feedback.ErrBadArgument)
	}
	board = board.WithPort(address)
	if err := board.Validate(); err != nil {
		feedback.Fatal(err.Error(), feedback.ErrBadArgument)
	}
	logrus.Debugf("got board: %s", board.Name)
	return board
}
