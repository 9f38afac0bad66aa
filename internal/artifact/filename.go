// Package artifact stores firmware artifacts and turns uploads, remote
// URLs and ingestion messages into catalog records.
package artifact

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidFilename is returned for artifact names that cannot be stored.
var ErrInvalidFilename = errors.New("invalid artifact filename")

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]{0,254}$`)

// ValidateFilename accepts a plain file name: no directories, no leading
// dot, no "..", and not the temp suffix used for uploads.
func ValidateFilename(name string) error {
	switch {
	case !filenamePattern.MatchString(name),
		strings.Contains(name, ".."),
		strings.HasSuffix(name, tempSuffix):
		return ErrInvalidFilename
	}
	return nil
}

// FilenameFromURL extracts and validates the last path element of rawURL.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidFilename
	}
	name := path.Base(u.Path)
	if err := ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}
