package storage

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// ParseSize converts a human-readable size field ("300K", "512M", "1.2G",
// "0.5T", plain "4096" meaning bytes) into bytes. Fractions are only
// meaningful with a unit suffix.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size field")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = KiB
		s = s[:len(s)-1]
	case 'M', 'm':
		mult = MiB
		s = s[:len(s)-1]
	case 'G', 'g':
		mult = GiB
		s = s[:len(s)-1]
	case 'T', 't':
		mult = TiB
		s = s[:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad size field %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative size field %q", s)
	}
	return int64(v * float64(mult)), nil
}

// FormatBytes renders a byte count the way the rest of the tool prints
// sizes, with one decimal place and a binary unit.
func FormatBytes(n int64) string {
	switch {
	case n >= TiB:
		return fmt.Sprintf("%.1f TiB", float64(n)/TiB)
	case n >= GiB:
		return fmt.Sprintf("%.1f GiB", float64(n)/GiB)
	case n >= MiB:
		return fmt.Sprintf("%.1f MiB", float64(n)/MiB)
	case n >= KiB:
		return fmt.Sprintf("%.1f KiB", float64(n)/KiB)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
