package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxFileNameLength = 200

// SanitizeFileName reduces an uploaded file name to a safe base name that can
// be embedded in a blob key.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			return -1
		case unicode.IsSpace(r):
			return '_'
		}
		return r
	}, name)

	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "file"
	}

	if runes := []rune(cleaned); len(runes) > maxFileNameLength {
		ext := FileExtension(cleaned)
		keep := maxFileNameLength - len([]rune(ext)) - 1
		if ext == "" || keep <= 0 {
			return string(runes[:maxFileNameLength])
		}
		cleaned = string(runes[:keep]) + "." + ext
	}
	return cleaned
}

// FileExtension returns the lower case extension without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
