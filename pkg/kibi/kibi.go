package kibi

// Package kibi formats and parses byte sizes in powers of 1024

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var DigitRegex = regexp.MustCompile(`^\d+`)
var ErrInvalidByteSizeString = fmt.Errorf("Invalid byte size string")

var units = []string{"KB", "MB", "GB", "TB", "PB"}

// FormatBytes returns a human readable size, rounded down, such as "35 MB"
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%v bytes", b)
	}
	unit := 0
	b /= 1024
	for b >= 1024 && unit < len(units)-1 {
		b /= 1024
		unit++
	}
	return fmt.Sprintf("%v %v", b, units[unit])
}

// FormatMegabytes returns the size in MB with one decimal, such as "35.2 MB"
func FormatMegabytes(b uint64) string {
	return fmt.Sprintf("%.1f MB", float64(b)/1024/1024)
}

// ParseBytes parses a size such as "512 MB", "2g" or "4096".
// Suffixes are case insensitive, and may be a single letter.
func ParseBytes(v string) (int64, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	digits := DigitRegex.FindString(v)
	if digits == "" {
		return 0, ErrInvalidByteSizeString
	}
	suffix := strings.TrimSpace(v[len(digits):])
	multiplier := int64(1)
	switch suffix {
	case "", "b", "bytes":
	default:
		found := false
		for i, u := range units {
			mult := int64(1) << (10 * (i + 1))
			if suffix == strings.ToLower(u) || suffix == strings.ToLower(u[:1]) {
				multiplier = mult
				found = true
				break
			}
		}
		if !found {
			return 0, ErrInvalidByteSizeString
		}
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	return value * multiplier, nil
}
