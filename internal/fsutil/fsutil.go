// Package fsutil contains the filesystem guards used when remote names become local paths.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned when a remote file name cannot be used locally.
var ErrInvalidName = errors.New("invalid file name")

// SanitizeName turns a remote file name into a single safe path segment.
// Names are NFC-normalized so that decomposed uploads map to the same local file,
// separators and control characters are replaced with '_'.
func SanitizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	n = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, n)
	if n == "" || n == "." || n == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return n, nil
}

// IsRegularFile checks if path exists and is a regular file (not directory, device, etc).
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	return nil
}
