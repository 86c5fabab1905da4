package invoice

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is a color with 8-bit channels
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// White is used for table header text
var White = RGB{R: 255, G: 255, B: 255}

// ParseHex converts "#rrggbb", "rrggbb" or "#rgb" into an RGB value
func ParseHex(value string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: expected 6 hex digits", value)
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", value, err)
	}

	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// MustParseHex is ParseHex for constants; it panics on bad input
func MustParseHex(value string) RGB {
	c, err := ParseHex(value)
	if err != nil {
		panic(err)
	}
	return c
}

// Ints returns the channels as ints, the form fpdf expects
func (c RGB) Ints() (int, int, int) {
	return int(c.R), int(c.G), int(c.B)
}

// DefaultColors returns the text, header and background defaults
func DefaultColors() (text, header, background RGB) {
	return MustParseHex(DefaultTextColor), MustParseHex(DefaultHeaderColor), MustParseHex(DefaultBackgroundColor)
}
