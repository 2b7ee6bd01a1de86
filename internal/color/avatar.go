// Package color derives deterministic avatar codes for profiles that have no image.
package color

import (
	"fmt"
	"strings"
	"unicode"
)

// ForProfile returns a stable hex colour for the profile id.
// Saturation and lightness are fixed so every hue stays readable behind white initials.
func ForProfile(profileID string) string {
	h := 0
	for _, c := range profileID {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}

	r, g, b := hslToRGB(float64(h%360), 0.45, 0.55)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// Initials returns up to two upper-case initials from a display name.
// Falls back to the first letter of the id, then "?".
func Initials(name, fallback string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		for _, r := range fallback {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				out = append(out, unicode.ToUpper(r))
				break
			}
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

// AvatarCode encodes initials and colour as "JD:#4F9BD1". Clients render it
// in place of a profile photo.
func AvatarCode(profileID, name string) string {
	return Initials(name, profileID) + ":" + ForProfile(profileID)
}

// hslToRGB converts h (0-360), s and l (0-1) to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64
	if s == 0 {
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(r1 * 255), uint8(g1 * 255), uint8(b1 * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
