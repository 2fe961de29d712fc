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

package board

import (
	"os"
	"strings"

	"github.com/arduino/arduino-cli/table"
	"github.com/arduino/avr109-uploader/cli/arguments"
	"github.com/arduino/avr109-uploader/cli/common"
	"github.com/arduino/avr109-uploader/cli/feedback"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var boardsFile string
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List known boards",
		Long:    "Displays the board profiles available for upload, the builtin ones and the ones loaded from a boards file.",
		Example: "  " + os.Args[0] + " board list --boards-file boards.yaml",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			feedback.PrintResult(BoardListResult(common.LoadBoards(boardsFile)))
		},
	}
	arguments.AddBoardsFileFlag(listCmd, &boardsFile)
	return listCmd
}

// BoardListResult is the list of known board profiles
type BoardListResult []*profile.Profile

func (b BoardListResult) String() string {
	if len(b) == 0 {
		return "No boards available."
	}
	t := table.New()
	t.SetHeader("Name", "Description", "Signature", "Baudrate", "Product IDs")
	for _, p := range b {
		t.AddRow(p.Name, p.Description, p.Signature.String(), p.BaudRate, strings.Join(p.ProductIDs, ","))
	}
	return t.Render()
}

// Data implements feedback.Result
func (b BoardListResult) Data() interface{} {
	return b
}
