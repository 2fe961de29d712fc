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

package transport_test

import (
	"errors"
	"testing"

	"github.com/arduino/avr109-uploader/transport"
	"github.com/arduino/avr109-uploader/transport/fake"
	"github.com/stretchr/testify/require"
)

func TestConnectionSingleAttempt(t *testing.T) {
	conn := transport.NewConnection("COM7", 57600)
	require.NoError(t, conn.Begin())
	require.ErrorIs(t, conn.Begin(), transport.ErrAttemptActive)
	conn.End()
	require.NoError(t, conn.Begin())
	conn.End()
}

func TestConnectionOpenAndDiscard(t *testing.T) {
	tr := &fake.Transport{}
	conn := transport.NewConnection("COM7", 57600)

	require.NoError(t, conn.Open(tr))
	require.Len(t, tr.Opened(), 1)
	p := tr.Opened()[0]
	require.Equal(t, "COM7", p.Name)
	require.Equal(t, 57600, p.BaudRate)
	require.Same(t, p, conn.Port)

	conn.Discard()
	require.Nil(t, conn.Port)
	require.True(t, p.IsClosed())

	// discarding twice is harmless
	conn.Discard()
}

func TestConnectionOpenFailure(t *testing.T) {
	tr := &fake.Transport{OnOpen: func(p *fake.Port) error { return errors.New("busy") }}
	conn := transport.NewConnection("COM7", 57600)

	err := conn.Open(tr)
	var unavailable *transport.PortUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Equal(t, "COM7", unavailable.Port)
	require.Nil(t, conn.Port)
}
