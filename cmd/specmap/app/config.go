package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	SpectrumDynamic   = "dynamic"
	SpectrumSecondary = "secondary"
)

type ImageFormat string

type SpectrumKind string

type Config struct {
	DBPath        string
	ObservationID int64
	OutputFile    string
	Format        ImageFormat
	Spectrum      SpectrumKind
	Theme         ColorTheme
	FontPath      string
	FringeScale   float64
	DelayScale    float64
	FullDelayAxis bool
	MinPower      *float64
	MaxPower      *float64
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

var validSpectrumKinds = map[SpectrumKind]struct{}{
	SpectrumDynamic:   {},
	SpectrumSecondary: {},
}

func NewConfig() *Config {
	return &Config{
		Format:      ImagePNG,
		Spectrum:    SpectrumSecondary,
		Theme:       ThemeClassic,
		FringeScale: 1,
		DelayScale:  1,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var imageFormat, spectrumKind, theme string
	var minPower, maxPower float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the observation database file")
	flag.Int64Var(&c.ObservationID, "id", 0, "Observation ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	flag.StringVar(&spectrumKind, "spectrum", string(SpectrumSecondary), "Spectrum to render. [dynamic, secondary]")
	flag.StringVar(&theme, "theme", string(ThemeClassic), "Color theme. [classic, grayscale, thermal, marine]")
	flag.StringVar(&c.FontPath, "font", "", "Path to a TTF font for scales and labels (no annotations when omitted)")
	flag.Float64Var(&c.FringeScale, "fringe-scale", 1, "Fraction of the fringe frequency axis to keep, (0, 1]")
	flag.Float64Var(&c.DelayScale, "delay-scale", 1, "Fraction of the delay axis to keep, (0, 1]")
	flag.BoolVar(&c.FullDelayAxis, "full-delay", false, "Keep both delay halves instead of cutting the mirror image")
	flag.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	flag.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	flag.Parse()

	imageFormat = strings.ToLower(imageFormat)
	spectrumKind = strings.ToLower(spectrumKind)
	theme = strings.ToLower(theme)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-power" {
			c.MinPower = &minPower
		}
		if f.Name == "max-power" {
			c.MaxPower = &maxPower
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.ObservationID <= 0 {
		err = errors.New("observation id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validSpectrumKinds[SpectrumKind(spectrumKind)]; !ok {
		err = fmt.Errorf("invalid spectrum kind: %s", spectrumKind)
	} else if _, ok := validColorThemes[ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Spectrum = SpectrumKind(spectrumKind)
	c.Theme = ColorTheme(theme)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
