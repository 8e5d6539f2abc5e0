package domain

import (
	"fmt"
	"math"
	"unicode/utf16"
)

var colorLevels = [...]float64{0.35, 0.5, 0.65}

// ResolveColor returns the display color of a selected course: the user's
// override when set, otherwise a color derived from the course ID.
func ResolveColor(c DibItCourse) string {
	if c.Color != "" {
		return c.Color
	}
	return ColorHash(c.ID)
}

// ColorHash deterministically maps a string to a "#rrggbb" color with
// medium saturation and lightness.
func ColorHash(s string) string {
	h, sat, light := hashHSL(s)
	r, g, b := hslToRGB(h, sat, light)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// bkdrHash is a BKDR string hash kept below 2^53 so the arithmetic stays
// exact in float64 consumers of the same palette.
func bkdrHash(s string) uint64 {
	const (
		seed  = 131
		seed2 = 137
	)
	maxSafe := uint64(9007199254740991 / seed2)

	var hash uint64
	for _, unit := range utf16.Encode([]rune(s + "x")) {
		if hash > maxSafe {
			hash /= seed2
		}
		hash = hash*seed + uint64(unit)
	}
	return hash
}

func hashHSL(s string) (h, sat, light float64) {
	hash := bkdrHash(s)

	h = float64(hash % 359)
	hash = ceilDiv(hash, 360)
	sat = colorLevels[hash%uint64(len(colorLevels))]
	hash = ceilDiv(hash, uint64(len(colorLevels)))
	light = colorLevels[hash%uint64(len(colorLevels))]
	return h, sat, light
}

func ceilDiv(a, b uint64) uint64 {
	return (a + b - 1) / b
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q

	channel := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 0.5:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*6*(2.0/3-t)
		default:
			v = p
		}
		return uint8(math.Round(v * 255))
	}

	return channel(h + 1.0/3), channel(h), channel(h - 1.0/3)
}
