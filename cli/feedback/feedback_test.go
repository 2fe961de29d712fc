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

package feedback

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Board string `json:"board"`
}

func (s *sample) String() string     { return "uploaded to " + s.Board }
func (s *sample) Data() interface{} { return s }

// capture redirects the output and the exit calls for the duration of the test
func capture(t *testing.T, f OutputFormat) (out, errOut *bytes.Buffer, codes *[]int) {
	out, errOut, codes = &bytes.Buffer{}, &bytes.Buffer{}, &[]int{}
	oldFormat, oldStdout, oldStderr, oldExit := format, stdout, stderr, exit
	format, stdout, stderr = f, out, errOut
	exit = func(code int) { *codes = append(*codes, code) }
	t.Cleanup(func() {
		format, stdout, stderr, exit = oldFormat, oldStdout, oldStderr, oldExit
	})
	return
}

func TestParseOutputFormat(t *testing.T) {
	f, ok := ParseOutputFormat("json")
	require.True(t, ok)
	require.Equal(t, JSON, f)
	require.Equal(t, "json", f.String())
	_, ok = ParseOutputFormat("yaml")
	require.False(t, ok)
}

func TestPrintResult(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, _, _ := capture(t, Text)
		PrintResult(&sample{Board: "leonardo"})
		require.Equal(t, "uploaded to leonardo\n", out.String())
	})
	t.Run("json", func(t *testing.T) {
		out, _, _ := capture(t, JSON)
		Printf("not shown in json")
		PrintResult(&sample{Board: "leonardo"})
		require.JSONEq(t, `{"board":"leonardo"}`, out.String())
	})
}

func TestFatal(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		_, errOut, codes := capture(t, Text)
		Fatal("board not found", ErrBoardNotFound)
		require.Equal(t, "board not found\n", errOut.String())
		require.Equal(t, []int{4}, *codes)
	})
	t.Run("json", func(t *testing.T) {
		out, _, codes := capture(t, JSON)
		Fatal("bad firmware", ErrBadFirmware)
		require.JSONEq(t, `{"error":"bad firmware","exit_code":3}`, out.String())
		require.Equal(t, []int{3}, *codes)
	})
}
