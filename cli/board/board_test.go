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
	"encoding/json"
	"errors"
	"testing"

	"github.com/arduino/avr109-uploader/profile"
	"github.com/arduino/avr109-uploader/transport"
	"github.com/arduino/avr109-uploader/transport/fake"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tr := &fake.Transport{PortLists: [][]*transport.PortDetails{{
		{Name: "COM3"},
		{Name: "COM7", IsUSB: true, VID: "2341", PID: "8036"},
		{Name: "COM9", IsUSB: true, VID: "2341", PID: "0037"},
		{Name: "COM12", IsUSB: true, VID: "0403", PID: "6001"},
	}}}
	res, err := detect(tr, profile.Builtin())
	require.NoError(t, err)
	require.Equal(t, PortListResult{
		{Port: "COM3"},
		{Port: "COM7", VID: "2341", PID: "8036", Board: "leonardo"},
		{Port: "COM9", VID: "2341", PID: "0037", Board: "micro"},
		{Port: "COM12", VID: "0403", PID: "6001"},
	}, res)
	out := res.String()
	require.Contains(t, out, "VID:PID")
	require.Contains(t, out, "2341:8036")
	require.Contains(t, out, "leonardo")

	tr = &fake.Transport{PortsErr: errors.New("enumeration failed")}
	_, err = detect(tr, profile.Builtin())
	require.Error(t, err)
}

func TestBoardListResult(t *testing.T) {
	require.Equal(t, "No boards available.", BoardListResult{}.String())
	out := BoardListResult(profile.Builtin()).String()
	require.Contains(t, out, "leonardo")
	require.Contains(t, out, "Product IDs")
	require.Contains(t, out, "1e9587")

	data, err := json.Marshal(BoardListResult(profile.Builtin()[:1]).Data())
	require.NoError(t, err)
	require.Contains(t, string(data), `"signature":"1e9587"`)
}
