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
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// SplitChecksum separates the checksum appended to a locator as a fragment,
// e.g. https://example.com/Blink.hex#SHA-256:9f86d0... The checksum is
// empty if the locator has none.
func SplitChecksum(locator string) (target string, checksum string) {
	i := strings.LastIndex(locator, "#")
	if i < 0 || !strings.Contains(locator[i+1:], ":") {
		return locator, ""
	}
	return locator[:i], locator[i+1:]
}

// VerifyChecksum checks data against a checksum in the ALGO:hexdigest form
// used by the Arduino package indexes. SHA-256, SHA-1 and MD5 are supported.
func VerifyChecksum(checksum string, data []byte) error {
	split := strings.SplitN(checksum, ":", 2)
	if len(split) != 2 {
		return fmt.Errorf("invalid checksum format: %s", checksum)
	}
	digest, err := hex.DecodeString(split[1])
	if err != nil {
		return fmt.Errorf("invalid hash '%s': %s", split[1], err)
	}

	// names based on: https://docs.oracle.com/javase/8/docs/technotes/guides/security/StandardNames.html#MessageDigest
	var algo hash.Hash
	switch strings.ToUpper(split[0]) {
	case "SHA-256":
		algo = sha256.New()
	case "SHA-1":
		algo = sha1.New()
	case "MD5":
		algo = md5.New()
	default:
		return fmt.Errorf("unsupported hash algorithm: %s", split[0])
	}

	algo.Write(data)
	if !bytes.Equal(algo.Sum(nil), digest) {
		return fmt.Errorf("firmware hash differs from %s", checksum)
	}
	return nil
}
