package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

// MaxFileNameRunes bounds names forwarded in Content-Disposition headers.
const MaxFileNameRunes = 255

// ErrInvalidFileName is returned for empty or traversal-shaped names.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName flattens path separators, drops control and quote
// characters, and rejects traversal patterns. Long names are cut while
// keeping the extension.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidFileName
	}
	s := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case r == '"' || unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidFileName
	}

	runes := []rune(s)
	if len(runes) <= MaxFileNameRunes {
		return s, nil
	}
	ext := []rune(path.Ext(s))
	if len(ext) >= MaxFileNameRunes {
		ext = nil
	}
	return string(runes[:MaxFileNameRunes-len(ext)]) + string(ext), nil
}
