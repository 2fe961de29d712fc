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

package bootloader

import (
	"fmt"

	"github.com/arduino/avr109-uploader/profile"
)

// InitError is returned when the driver can not be bound to the board, no
// phase has been run.
type InitError struct {
	Signature profile.Signature
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing bootloader for signature %s: %s", e.Signature, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// PhaseError is returned by the first failing phase.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
