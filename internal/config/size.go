package config

import (
	"fmt"
	"strings"
)

// DefaultMaxUploadBytes is used when upload.max_size cannot be parsed.
const DefaultMaxUploadBytes int64 = 200 * 1024 * 1024

// ParseSize parses a human-readable size string (e.g. "10MB", "512KB", "2GB")
// into bytes. Returns defaultBytes if the string cannot be parsed.
func ParseSize(s string, defaultBytes int64) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultBytes
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	var val int64
	var rest string
	if n, _ := fmt.Sscanf(strings.TrimSpace(s), "%d%s", &val, &rest); n >= 1 && rest == "" && val > 0 {
		return val * multiplier
	}
	return defaultBytes
}

// MaxBytes returns the upload limit in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return ParseSize(u.MaxSize, DefaultMaxUploadBytes)
}
