package app

import "testing"

func testSpectrumImage() *SpectrumImage {
	return &SpectrumImage{
		Title:  "B0834+06 @ 430.00 MHz",
		XAxis:  []float64{-1, 0, 1},
		YAxis:  []float64{0, 0.5},
		Values: [][]float64{{-30, -20, -10}, {-25, -15, -5}},
		Bounds: PowerBounds{Min: -30, Max: -5},
	}
}

func TestRender_NoFontIsBorderless(t *testing.T) {
	r, err := NewRenderer(RenderConfig{Theme: ThemeClassic})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	img, err := r.Render(testSpectrumImage())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	size := img.Bounds().Size()
	if size.X != 3 || size.Y != 2 {
		t.Errorf("image size = %dx%d, want 3x2", size.X, size.Y)
	}
}

func TestRender_FlipsRows(t *testing.T) {
	r, err := NewRenderer(RenderConfig{Theme: ThemeGrayscale})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	spec := testSpectrumImage()
	img, err := r.Render(spec)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// Values[1] holds the higher delay row, so it must land on image row 0.
	cm := NewColorMapper(ThemeGrayscale, spec.Bounds)
	want := cm.At(spec.Values[1][0])
	got := img.At(0, 0)

	wr, wg, wb, _ := want.RGBA()
	gr, gg, gb, _ := got.RGBA()
	if wr != gr || wg != gg || wb != gb {
		t.Errorf("top-left pixel = %v, want %v", got, want)
	}
}

func TestRender_MismatchedAxes(t *testing.T) {
	r, err := NewRenderer(RenderConfig{Theme: ThemeClassic})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	spec := testSpectrumImage()
	spec.XAxis = spec.XAxis[:2]
	if _, err = r.Render(spec); err == nil {
		t.Error("Render() error = nil, want error for mismatched axes")
	}
}

func TestColorMapper_ClampsOutOfRange(t *testing.T) {
	cm := NewColorMapper(ThemeClassic, PowerBounds{Min: -30, Max: 0})

	low := cm.At(-100)
	lowest := cm.At(-30)
	if low != lowest {
		t.Errorf("At(-100) = %v, want clamped to At(-30) = %v", low, lowest)
	}

	high := cm.At(50)
	highest := cm.At(0)
	if high != highest {
		t.Errorf("At(50) = %v, want clamped to At(0) = %v", high, highest)
	}
}

func TestColorMapper_GradientEnds(t *testing.T) {
	themes := []ColorTheme{ThemeClassic, ThemeGrayscale, ThemeThermal, ThemeMarine}
	for _, theme := range themes {
		t.Run(string(theme), func(t *testing.T) {
			cm := NewColorMapper(theme, PowerBounds{Min: 0, Max: 1})
			if cm.At(0) == cm.At(1) {
				t.Error("gradient ends map to the same color")
			}
		})
	}
}

func TestThemeFunc_ReturnsOpaqueColors(t *testing.T) {
	for theme := range validColorThemes {
		fn := themeFunc(theme)
		for _, v := range []float64{0, 0.25, 0.5, 0.75, 1} {
			_, _, _, a := fn(v).RGBA()
			if a != 0xffff {
				t.Errorf("theme %s at %g: alpha = %#x, want opaque", theme, v, a)
			}
		}
	}
}
