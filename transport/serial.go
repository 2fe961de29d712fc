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

package transport

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ReadTimeout is applied to every port opened by Serial.
const ReadTimeout = 2 * time.Second

// Serial is the Transport backed by the OS serial ports.
type Serial struct{}

// Open the port at the given baudrate
func (Serial) Open(portName string, baudRate int) (Port, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, &PortUnavailableError{Port: portName, BaudRate: baudRate, Err: err}
	}
	logrus.Infof("Opened port %s at %d", portName, baudRate)

	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		err = fmt.Errorf("could not set timeout on serial port: %w", err)
		logrus.Error(err)
		return nil, err
	}
	return port, nil
}

// Ports lists the serial ports currently registered in the system
func (Serial) Ports() ([]*PortDetails, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	res := make([]*PortDetails, 0, len(list))
	for _, p := range list {
		res = append(res, &PortDetails{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return res, nil
}
