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
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/downloader/v2"
)

// Resolver returns the raw content of the firmware pointed by a locator.
type Resolver interface {
	Resolve(locator string) ([]byte, error)
}

// DefaultResolver reads local files and downloads http(s) URLs.
type DefaultResolver struct{}

// NewResolver returns the DefaultResolver
func NewResolver() *DefaultResolver {
	return &DefaultResolver{}
}

// Resolve implements Resolver
func (r *DefaultResolver) Resolve(locator string) ([]byte, error) {
	target, checksum := SplitChecksum(locator)
	data, err := r.fetch(locator, target)
	if err != nil {
		return nil, err
	}
	if checksum != "" {
		if err := VerifyChecksum(checksum, data); err != nil {
			return nil, &ResolveError{Locator: locator, Kind: TransportError, Err: err}
		}
		logrus.WithField("firmware", target).Debugf("Checksum %s verified", checksum)
	}
	return data, nil
}

func (r *DefaultResolver) fetch(locator, target string) ([]byte, error) {
	if u, err := url.Parse(target); err == nil {
		switch u.Scheme {
		case "http", "https":
			return r.download(locator, u)
		case "file":
			return r.readFile(locator, paths.New(u.Path))
		}
	}
	return r.readFile(locator, paths.New(target))
}

func (r *DefaultResolver) readFile(locator string, file *paths.Path) ([]byte, error) {
	if file == nil || !file.Exist() {
		return nil, &ResolveError{Locator: locator, Kind: NotFound, Err: fmt.Errorf("file does not exist")}
	}
	data, err := file.ReadFile()
	if err != nil {
		return nil, &ResolveError{Locator: locator, Kind: TransportError, Err: errors.WithMessage(err, "reading firmware")}
	}
	logrus.WithField("file", file).Debugf("Read %d bytes of firmware", len(data))
	return data, nil
}

func (r *DefaultResolver) download(locator string, u *url.URL) ([]byte, error) {
	tmpDir, err := paths.MkTempDir("", "avr109-uploader")
	if err != nil {
		return nil, &ResolveError{Locator: locator, Kind: TransportError, Err: errors.WithMessage(err, "creating temp dir for download")}
	}
	defer tmpDir.RemoveAll()

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "firmware"
	}
	file := tmpDir.Join(name)

	logrus.WithField("url", u.String()).Info("Downloading firmware")
	d, err := downloader.Download(file.String(), u.String())
	if err != nil {
		return nil, &ResolveError{Locator: locator, Kind: TransportError, Err: errors.WithMessage(err, "downloading firmware")}
	}
	if err := Download(d); err != nil {
		kind := TransportError
		if d.Resp != nil && d.Resp.StatusCode == http.StatusNotFound {
			kind = NotFound
		}
		return nil, &ResolveError{Locator: locator, Kind: kind, Err: err}
	}
	return r.readFile(locator, file)
}

// Download will take a downloader.Downloader as parameter. It will Download the file specified in the downloader
func Download(d *downloader.Downloader) error {
	if d == nil {
		// This signal means that the file is already downloaded
		return nil
	}
	if err := d.Run(); err != nil {
		return fmt.Errorf("failed to download file from %s : %s", d.URL, err)
	}
	// The URL is not reachable for some reason
	if d.Resp.StatusCode >= 400 && d.Resp.StatusCode <= 599 {
		return errors.New(d.Resp.Status)
	}
	return nil
}

