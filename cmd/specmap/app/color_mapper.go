package app

import (
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	ThemeClassic   ColorTheme = "classic"
	ThemeGrayscale ColorTheme = "grayscale"
	ThemeThermal   ColorTheme = "thermal"
	ThemeMarine    ColorTheme = "marine"

	colorMapSize = 256

	hueStart = 236.0
	hueEnd   = 0.0
)

type ColorTheme string

var validColorThemes = map[ColorTheme]struct{}{
	ThemeClassic:   {},
	ThemeGrayscale: {},
	ThemeThermal:   {},
	ThemeMarine:    {},
}

// ColorMapper converts power values in dB to colors using a pre-computed
// gradient between fixed bounds.
type ColorMapper struct {
	colors        []color.Color
	bounds        PowerBounds
	powerPerIndex float64
}

func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	cm := &ColorMapper{
		colors:        make([]color.Color, colorMapSize),
		bounds:        bounds,
		powerPerIndex: (bounds.Max - bounds.Min) / float64(colorMapSize-1),
	}

	fn := themeFunc(theme)
	for i := range cm.colors {
		cm.colors[i] = fn(float64(i) / float64(colorMapSize-1))
	}
	return cm
}

// At returns the gradient color for power, clamping values outside the
// bounds to the gradient ends.
func (cm *ColorMapper) At(power float64) color.Color {
	pwr := math.Max(cm.bounds.Min, math.Min(power, cm.bounds.Max))

	index := int((pwr - cm.bounds.Min) / cm.powerPerIndex)
	if index < 0 {
		index = 0
	} else if index >= len(cm.colors) {
		index = len(cm.colors) - 1
	}

	return cm.colors[index]
}

// themeFunc maps a normalized power in [0, 1] to a color.
func themeFunc(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ThemeGrayscale:
		return func(t float64) color.Color {
			return colorful.Hsv(0, 0, t)
		}
	case ThemeThermal:
		return func(t float64) color.Color {
			return colorful.Hsv(60*t, 1, math.Sqrt(t))
		}
	case ThemeMarine:
		return func(t float64) color.Color {
			return colorful.Hsv(220-60*t, 1, 0.3+0.7*t)
		}
	default:
		return func(t float64) color.Color {
			hue := hueStart - t*(hueStart-hueEnd)
			return colorful.Hsv(hue, 1, 0.90)
		}
	}
}
