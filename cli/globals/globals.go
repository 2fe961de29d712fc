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

package globals

import "time"

var (
	// Verbose is set when the logs are printed on the standard output
	Verbose bool
	// LogLevel is the level selected with --log-level
	LogLevel string
)

const (
	// DefaultRetries is the number of upload attempts made by default
	DefaultRetries = 9
	// RetryDelay is the pause between two upload attempts
	RetryDelay = time.Second
	// BoardsFileEnv names the environment variable pointing to a boards file
	BoardsFileEnv = "AVR109_UPLOADER_BOARDS_FILE"
)
