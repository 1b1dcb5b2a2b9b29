package config

import (
	"fmt"
	"strconv"
	"strings"
)

var namedColors = map[string]int{
	"blurple": 0x5865F2,
	"orange":  0xE67E22,
	"green":   0x2ECC71,
	"red":     0xE74C3C,
	"blue":    0x3498DB,
	"gold":    0xF1C40F,
	"purple":  0x9B59B6,
	"grey":    0x95A5A6,
}

// ParseColor accepts "#RRGGBB", "0xRRGGBB", "RRGGBB" or a named color.
func ParseColor(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("color required")
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(s) != 6 {
		return 0, fmt.Errorf("invalid color %q", raw)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q", raw)
	}
	return int(v), nil
}
