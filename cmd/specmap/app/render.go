package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	dpi             = 120.0
	defaultFontSize = 12.0
	tickMarkLength  = 5
	pixelsPerXLabel = 120
	pixelsPerYLabel = 60

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40
)

// BorderConfig defines the sizes of white space around the spectrum
type BorderConfig struct {
	Top    int // Space for the fringe frequency scale
	Left   int // Space for the delay scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for spectrum visualization
type RenderConfig struct {
	Theme    ColorTheme
	FontPath string  // TTF file for scales and labels, empty disables them
	FontSize float64 // Font size in points
	Borders  BorderConfig
}

// SpectrumImage is a power matrix with its axes, ready to be rendered.
// Values[0] holds the row with the lowest YAxis value; rendering flips it
// so that the highest value ends up at the top of the image.
type SpectrumImage struct {
	Title  string
	XLabel string
	YLabel string
	XAxis  []float64
	YAxis  []float64
	Values [][]float64
	Bounds PowerBounds
}

// Renderer draws spectrum matrices as annotated heat maps
type Renderer struct {
	config   RenderConfig
	colorMap *ColorMapper
}

// NewRenderer creates a renderer with the given configuration
func NewRenderer(config RenderConfig) (*Renderer, error) {
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.FontPath == "" {
		// No font, no annotations, no border space needed.
		config.Borders = BorderConfig{}
	} else {
		if config.Borders.Top == 0 {
			config.Borders.Top = defaultTopBorder
		}
		if config.Borders.Left == 0 {
			config.Borders.Left = defaultLeftBorder
		}
		if config.Borders.Bottom == 0 {
			config.Borders.Bottom = defaultBottomBorder
		}
		if config.Borders.Right == 0 {
			config.Borders.Right = defaultRightBorder
		}
	}

	return &Renderer{config: config}, nil
}

// Render creates an image of the spectrum data with optional annotations
func (r *Renderer) Render(spec *SpectrumImage) (*image.RGBA, error) {
	height := len(spec.Values)
	if height == 0 {
		return nil, fmt.Errorf("rendering: empty spectrum")
	}
	width := len(spec.Values[0])
	if len(spec.XAxis) != width || len(spec.YAxis) != height {
		return nil, fmt.Errorf("rendering: axes do not match the %dx%d matrix", height, width)
	}

	fullWidth := width + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := height + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	// Spectrum area, 1:1 pixel mapping
	area := image.Rect(
		r.config.Borders.Left,
		r.config.Borders.Top,
		r.config.Borders.Left+width,
		r.config.Borders.Top+height,
	)

	r.colorMap = NewColorMapper(r.config.Theme, spec.Bounds)

	if r.config.FontPath != "" {
		ann, err := newAnnotator(r.config)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, spec, area); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderSpectrum(img, area, spec)

	return img, nil
}

func (r *Renderer) renderSpectrum(img *image.RGBA, area image.Rectangle, spec *SpectrumImage) {
	for y, row := range spec.Values {
		imgY := area.Max.Y - 1 - y
		for x, power := range row {
			img.Set(area.Min.X+x, imgY, r.colorMap.At(power))
		}
	}
}

type annotator struct {
	context  *freetype.Context
	borders  BorderConfig
	fontFace font.Face
}

func newAnnotator(config RenderConfig) (*annotator, error) {
	fontBytes, err := os.ReadFile(config.FontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		borders: config.Borders,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, spec *SpectrumImage, area image.Rectangle) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawXScale(img, spec, area); err != nil {
		return fmt.Errorf("drawing x scale: %w", err)
	}
	if err := a.drawYScale(img, spec, area); err != nil {
		return fmt.Errorf("drawing y scale: %w", err)
	}
	if err := a.drawInfoBar(img, spec); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawXScale(img *image.RGBA, spec *SpectrumImage, area image.Rectangle) error {
	width := area.Dx()
	count := max(2, width/pixelsPerXLabel)

	xMin, xMax := spec.XAxis[0], spec.XAxis[len(spec.XAxis)-1]

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.borders.Top - tickMarkLength - fontHeight/2

	for si := 0; si <= count; si++ {
		frac := float64(si) / float64(count)
		value := xMin + frac*(xMax-xMin)
		x := area.Min.X + int(frac*float64(width-1))

		for y := a.borders.Top - tickMarkLength; y < a.borders.Top; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatAxisValue(value)
		labelWidth := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-labelWidth/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) drawYScale(img *image.RGBA, spec *SpectrumImage, area image.Rectangle) error {
	height := area.Dy()
	count := max(2, height/pixelsPerYLabel)

	yMin, yMax := spec.YAxis[0], spec.YAxis[len(spec.YAxis)-1]

	for si := 0; si <= count; si++ {
		frac := float64(si) / float64(count)
		// Highest value at the top of the image.
		value := yMax - frac*(yMax-yMin)
		y := area.Min.Y + int(frac*float64(height-1))

		for x := a.borders.Left - tickMarkLength; x < a.borders.Left; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatAxisValue(value)
		labelWidth := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(a.borders.Left-tickMarkLength-labelWidth-3, y+3)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, spec *SpectrumImage) error {
	imgSize := img.Bounds().Size()
	textY := imgSize.Y - a.borders.Bottom/2

	info := spec.Title
	if spec.XLabel != "" || spec.YLabel != "" {
		info = fmt.Sprintf("%s | x: %s, y: %s", spec.Title, spec.XLabel, spec.YLabel)
	}

	pt := freetype.Pt(a.borders.Left, textY)
	_, err := a.context.DrawString(info, pt)
	return err
}

func formatAxisValue(v float64) string {
	return fmt.Sprintf("%.3g", v)
}
