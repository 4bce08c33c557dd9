// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is one LED colour in wire order.
type RGB struct {
	R, G, B uint8
}

// FromHex parses "RRGGBB" with or without a leading '#'.
func FromHex(hex string) (RGB, error) {
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) != 7 {
		return RGB{}, fmt.Errorf("colour %q: want 6 hex digits", hex)
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return RGB{}, fmt.Errorf("colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return RGB{r, g, b}, nil
}

// Scale multiplies each component by f, saturating at 255.
func (c RGB) Scale(f float64) RGB {
	return RGB{scale8(c.R, f), scale8(c.G, f), scale8(c.B, f)}
}

func scale8(v uint8, f float64) uint8 {
	x := float64(v) * f
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	default:
		return uint8(x)
	}
}

// Saturate scales the colour so its brightest component is 255.
func (c RGB) Saturate() RGB {
	m := max(c.R, c.G, c.B)
	if m == 0 {
		return c
	}
	return c.Scale(255 / float64(m))
}

// Mul multiplies two colours component-wise, treating 255 as 1.
func (c RGB) Mul(o RGB) RGB {
	return RGB{
		uint8(uint16(c.R) * uint16(o.R) / 255),
		uint8(uint16(c.G) * uint16(o.G) / 255),
		uint8(uint16(c.B) * uint16(o.B) / 255),
	}
}

// HDR ramps blue, then green, as v rises from 0 to 1.
func HDR(v float64) RGB {
	q := min(uint32(max(v, 0)*511), 511)
	return RGB{
		R: 0,
		G: uint8(satSub(q, 256)),
		B: uint8(min(q, 255)),
	}
}

// SuperHDR ramps blue, then green, then red, as v rises from 0 to 1.
func SuperHDR(v float64) RGB {
	q := min(uint32(max(v, 0)*765), 765)
	return RGB{
		R: uint8(satSub(q, 512)),
		G: uint8(min(satSub(q, 256), 255)),
		B: uint8(min(q, 255)),
	}
}

func satSub(a, b uint32) uint32 {
	if a < b {
		return 0
	}
	return a - b
}

// ColorMode selects how a level becomes a colour.
type ColorMode int

const (
	ColorFlat ColorMode = iota
	ColorHDR
	ColorSuperHDR
	ColorRainbow
)

// ParseColorMode accepts flat, hdr, superhdr (or super_hdr) and rainbow.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "flat":
		return ColorFlat, nil
	case "hdr":
		return ColorHDR, nil
	case "superhdr", "super_hdr":
		return ColorSuperHDR, nil
	case "rainbow":
		return ColorRainbow, nil
	default:
		return ColorFlat, fmt.Errorf("unknown colour mode %q", s)
	}
}

// Palette maps (channel, level) to an LED colour.
type Palette struct {
	mode ColorMode
	base RGB
	hues []RGB
}

// NewPalette builds a palette for channels outputs. base is the hex colour
// used by the flat mode.
func NewPalette(mode, base string, channels int) (*Palette, error) {
	m, err := ParseColorMode(mode)
	if err != nil {
		return nil, err
	}
	c, err := FromHex(base)
	if err != nil {
		return nil, err
	}

	p := &Palette{mode: m, base: c}
	if m == ColorRainbow {
		// Red at the bass end sweeping to violet at the top.
		p.hues = make([]RGB, channels)
		for i := range p.hues {
			hue := 0.0
			if channels > 1 {
				hue = 280 * float64(i) / float64(channels-1)
			}
			r, g, b := colorful.Hsv(hue, 1, 1).Clamped().RGB255()
			p.hues[i] = RGB{r, g, b}
		}
	}
	return p, nil
}

// Mode returns the palette's colour mode.
func (p *Palette) Mode() ColorMode { return p.mode }

// Color returns the colour of channel i at level (0..1).
func (p *Palette) Color(i int, level float64) RGB {
	switch p.mode {
	case ColorHDR:
		return HDR(level)
	case ColorSuperHDR:
		return SuperHDR(level)
	case ColorRainbow:
		if i >= 0 && i < len(p.hues) {
			return p.hues[i].Scale(level)
		}
		return RGB{}
	default:
		return p.base.Scale(level)
	}
}
