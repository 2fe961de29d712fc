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

package uploader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	failure := errors.New("failure")
	tests := []struct {
		from Stage
		err  error
		to   Stage
	}{
		{StageIdle, nil, StageResetting},
		{StageIdle, failure, StageFailed},
		{StageResetting, nil, StageConnecting},
		{StageResetting, failure, StageFailed},
		{StageConnecting, nil, StageSessionRunning},
		{StageConnecting, failure, StageFailed},
		{StageSessionRunning, nil, StageSucceeded},
		{StageSessionRunning, failure, StageFailed},
	}
	for _, test := range tests {
		to, err := next(test.from, test.err)
		require.NoError(t, err)
		require.Equal(t, test.to, to, "from %s", test.from)
	}

	for _, terminal := range []Stage{StageSucceeded, StageFailed} {
		_, err := next(terminal, nil)
		require.Error(t, err)
	}
}

func TestAttempt(t *testing.T) {
	var changes []string
	a := newAttempt(func(from, to Stage) {
		changes = append(changes, from.String()+">"+to.String())
	})
	a.advance(nil)
	a.advance(errors.New("board not found"))

	require.Equal(t, StageFailed, a.Stage)
	require.Equal(t, StageResetting, a.FailedAt)
	require.Equal(t, []Stage{StageIdle, StageResetting, StageFailed}, a.Trace)
	require.Equal(t, []string{"idle>resetting", "resetting>failed"}, changes)
	require.Panics(t, func() { a.advance(nil) })
}

func TestStageText(t *testing.T) {
	text, err := StageSessionRunning.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "session-running", string(text))
	require.True(t, StageSucceeded.Terminal())
	require.False(t, StageConnecting.Terminal())
}
