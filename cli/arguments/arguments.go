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

package arguments

import (
	"github.com/spf13/cobra"
)

// Flags contains various common flags.
// This is useful so all flags used by commands that need
// this information are consistent with each other.
type Flags struct {
	Address    string
	Board      string
	BoardsFile string
}

// AddToCommand adds the flags used to set address and board to the specified Command
func (f *Flags) AddToCommand(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Board, "board", "b", "", "Board name, e.g.: leonardo, micro, yun, esplora")
	cmd.Flags().StringVarP(&f.Address, "address", "a", "", "Upload port, e.g.: COM10, /dev/ttyACM0")
	AddBoardsFileFlag(cmd, &f.BoardsFile)
}

// AddBoardsFileFlag adds the flag used to load board profiles from a YAML file
func AddBoardsFileFlag(cmd *cobra.Command, boardsFile *string) {
	cmd.Flags().StringVar(boardsFile, "boards-file", "", "YAML file with additional board profiles")
}
