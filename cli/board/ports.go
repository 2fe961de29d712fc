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
	"fmt"
	"os"

	"github.com/arduino/arduino-cli/table"
	"github.com/arduino/avr109-uploader/cli/arguments"
	"github.com/arduino/avr109-uploader/cli/common"
	"github.com/arduino/avr109-uploader/cli/feedback"
	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/spf13/cobra"
)

func newPortsCommand() *cobra.Command {
	var boardsFile string
	portsCmd := &cobra.Command{
		Use:     "ports",
		Short:   "List serial ports",
		Long:    "Displays the serial ports of this computer and the board recognized on each one by its USB product id.",
		Example: "  " + os.Args[0] + " board ports",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			res, err := detect(transport.Serial{}, common.LoadBoards(boardsFile))
			if err != nil {
				feedback.Fatal(fmt.Sprintf("Error listing serial ports: %s", err), feedback.ErrGeneric)
			}
			feedback.PrintResult(res)
		},
	}
	arguments.AddBoardsFileFlag(portsCmd, &boardsFile)
	return portsCmd
}

// DetectedPort is a serial port with the board recognized on it, if any
type DetectedPort struct {
	Port  string `json:"port"`
	VID   string `json:"vid,omitempty"`
	PID   string `json:"pid,omitempty"`
	Board string `json:"board,omitempty"`
}

// PortListResult is the list of serial ports found
type PortListResult []*DetectedPort

func detect(tr transport.Transport, boards []*profile.Profile) (PortListResult, error) {
	ports, err := tr.Ports()
	if err != nil {
		return nil, err
	}
	res := PortListResult{}
	for _, port := range ports {
		detected := &DetectedPort{Port: port.Name}
		if port.IsUSB {
			detected.VID = port.VID
			detected.PID = port.PID
			for _, b := range boards {
				if b.HasProductID(port.PID) {
					detected.Board = b.Name
					break
				}
			}
		}
		res = append(res, detected)
	}
	return res, nil
}

func (p PortListResult) String() string {
	if len(p) == 0 {
		return "No serial ports found."
	}
	t := table.New()
	t.SetHeader("Port", "VID:PID", "Board")
	for _, port := range p {
		id := ""
		if port.VID != "" {
			id = port.VID + ":" + port.PID
		}
		t.AddRow(port.Port, id, port.Board)
	}
	return t.Render()
}

// Data implements feedback.Result
func (p PortListResult) Data() interface{} {
	return p
}
