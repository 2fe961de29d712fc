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
	"fmt"

	"github.com/sirupsen/logrus"
)

// Stage is a stage of an upload attempt.
type Stage int

const (
	// StageIdle the firmware is being resolved
	StageIdle Stage = iota
	// StageResetting the board is being rebooted into the bootloader
	StageResetting
	// StageConnecting the bootloader port is being opened
	StageConnecting
	// StageSessionRunning the programming phases are running
	StageSessionRunning
	// StageSucceeded the upload completed
	StageSucceeded
	// StageFailed the upload failed, see Attempt.FailedAt
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageResetting:
		return "resetting"
	case StageConnecting:
		return "connecting"
	case StageSessionRunning:
		return "session-running"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// next returns the stage that follows s once the work done in s ends
// with err. Every non terminal stage either moves one step forward or fails.
func next(s Stage, err error) (Stage, error) {
	if s.Terminal() {
		return s, fmt.Errorf("no transition from terminal stage %s", s)
	}
	if err != nil {
		return StageFailed, nil
	}
	switch s {
	case StageIdle:
		return StageResetting, nil
	case StageResetting:
		return StageConnecting, nil
	case StageConnecting:
		return StageSessionRunning, nil
	case StageSessionRunning:
		return StageSucceeded, nil
	}
	return s, fmt.Errorf("unknown stage %s", s)
}

// Attempt tracks the stages of a single upload. It can't be restarted.
type Attempt struct {
	Stage    Stage
	FailedAt Stage
	Trace    []Stage

	onChange func(from, to Stage)
}

func newAttempt(onChange func(from, to Stage)) *Attempt {
	return &Attempt{
		Stage:    StageIdle,
		Trace:    []Stage{StageIdle},
		onChange: onChange,
	}
}

// advance moves the attempt out of its current stage, err is the outcome
// of the work done in that stage.
func (a *Attempt) advance(err error) {
	to, terr := next(a.Stage, err)
	if terr != nil {
		panic(terr)
	}
	from := a.Stage
	if to == StageFailed {
		a.FailedAt = from
	}
	a.Stage = to
	a.Trace = append(a.Trace, to)
	logrus.Debugf("Upload stage %s -> %s", from, to)
	if a.onChange != nil {
		a.onChange(from, to)
	}
}
