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

package firmware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
)

func requireKind(t *testing.T, err error, kind ErrorKind) {
	var resolveErr *ResolveError
	require.True(t, errors.As(err, &resolveErr), "expected a ResolveError, got %v", err)
	require.Equal(t, kind, resolveErr.Kind)
}

func TestParseHex(t *testing.T) {
	data, err := paths.New("testdata", "blink.hex").ReadFile()
	require.NoError(t, err)

	img, err := Parse("blink.hex", data)
	require.NoError(t, err)
	require.Equal(t, 0x108, img.Size())
	require.Len(t, img.Segments, 2)
	require.Equal(t, byte(0x03), img.Data[0])
	require.Equal(t, byte(0x0A), img.Data[1])
	require.Equal(t, byte(Padding), img.Data[0x40])
	require.Equal(t, byte(Padding), img.Data[0xFF])
	require.Equal(t, []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7}, img.Data[0x100:])
}

func TestParseMalformed(t *testing.T) {
	data, err := paths.New("testdata", "corrupt.hex").ReadFile()
	require.NoError(t, err)
	_, err = Parse("corrupt.hex", data)
	requireKind(t, err, MalformedImage)

	_, err = Parse("empty.hex", nil)
	requireKind(t, err, MalformedImage)

	_, err = Parse("garbage.hex", []byte("this is not a hex file"))
	requireKind(t, err, MalformedImage)
}

func TestParseBinary(t *testing.T) {
	img, err := Parse("sketch.BIN", []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, img.Data)
	require.Equal(t, []byte{1, 2, 3}, img.Segments[0])
}

func TestResolveLocalFile(t *testing.T) {
	r := NewResolver()

	img, err := Load(r, paths.New("testdata", "raw.bin").String())
	require.NoError(t, err)
	require.Equal(t, 16, img.Size())

	abs, err := paths.New("testdata", "blink.hex").Abs()
	require.NoError(t, err)
	data, err := r.Resolve("file://" + filepath.ToSlash(abs.String()))
	require.NoError(t, err)
	require.NotEmpty(t, data)

	_, err = r.Resolve(paths.New("testdata", "missing.hex").String())
	requireKind(t, err, NotFound)
}

func TestResolveURL(t *testing.T) {
	content, err := paths.New("testdata", "blink.hex").ReadFile()
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/firmwares/blink.hex" {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
	defer server.Close()

	r := NewResolver()
	img, err := Load(r, server.URL+"/firmwares/blink.hex")
	require.NoError(t, err)
	require.Equal(t, 0x108, img.Size())

	sum := sha256.Sum256(content)
	img, err = Load(r, server.URL+"/firmwares/blink.hex#SHA-256:"+hex.EncodeToString(sum[:]))
	require.NoError(t, err)
	require.Equal(t, 0x108, img.Size())

	_, err = r.Resolve(server.URL + "/firmwares/missing.hex")
	requireKind(t, err, NotFound)
}

func TestResolveUnreachableURL(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/blink.hex"
	server.Close()

	_, err := NewResolver().Resolve(url)
	requireKind(t, err, TransportError)
}

func TestChecksum(t *testing.T) {
	data, err := paths.New("testdata", "raw.bin").ReadFile()
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	good := "SHA-256:" + hex.EncodeToString(sum[:])

	target, checksum := SplitChecksum("testdata/raw.bin#" + good)
	require.Equal(t, "testdata/raw.bin", target)
	require.Equal(t, good, checksum)
	target, checksum = SplitChecksum("https://example.com/page#section")
	require.Equal(t, "https://example.com/page#section", target)
	require.Empty(t, checksum)

	require.NoError(t, VerifyChecksum(good, data))
	require.Error(t, VerifyChecksum("SHA-256:00", data))
	require.Error(t, VerifyChecksum("CRC32:00", data))
	require.Error(t, VerifyChecksum("nothex", data))

	r := NewResolver()
	img, err := Load(r, paths.New("testdata", "raw.bin").String()+"#"+good)
	require.NoError(t, err)
	require.Equal(t, 16, img.Size(), "the fragment must not hide the .bin extension")

	_, err = r.Resolve(paths.New("testdata", "raw.bin").String() + "#MD5:00112233445566778899aabbccddeeff")
	requireKind(t, err, TransportError)
}
