package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/pulsarpkg/arcfinder/internal/grid"
	"github.com/pulsarpkg/arcfinder/internal/spectrum"
	"github.com/pulsarpkg/arcfinder/internal/storage"
)

const jpegQuality = 98

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	obs, err := store.Observation(ctx, config.ObservationID)
	if err != nil {
		return fmt.Errorf("loading observation %d: %w", config.ObservationID, err)
	}
	raw, err := store.ObservationData(ctx, config.ObservationID)
	if err != nil {
		return fmt.Errorf("loading observation %d data: %w", config.ObservationID, err)
	}

	spec, err := buildSpectrumImage(obs.Meta, raw, config)
	if err != nil {
		return err
	}

	if config.MinPower != nil {
		spec.Bounds.Min = *config.MinPower
	}
	if config.MaxPower != nil {
		spec.Bounds.Max = *config.MaxPower
	}
	if spec.Bounds.Min >= spec.Bounds.Max {
		return fmt.Errorf("invalid power bounds: min %.2f is not below max %.2f", spec.Bounds.Min, spec.Bounds.Max)
	}

	renderer, err := NewRenderer(RenderConfig{
		Theme:    config.Theme,
		FontPath: config.FontPath,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering spectrum",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.String("spectrum", string(config.Spectrum)),
			slog.Int("width", len(spec.XAxis)),
			slog.Int("height", len(spec.YAxis)),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", spec.Bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", spec.Bounds.Max)),
		))

	img, err := renderer.Render(spec)
	if err != nil {
		return fmt.Errorf("rendering spectrum: %w", err)
	}

	if err := writeImage(config.OutputFile, config.Format, img); err != nil {
		return err
	}

	logger.Info("spectrum image written", slog.String("path", config.OutputFile))
	return nil
}

// writeImage encodes img to path in the requested format. Encoders only
// buffer through the file handle, so a failed close is a failed write.
func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing image file: %w", cErr)
		}
	}()

	switch format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(out, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}

// buildSpectrumImage prepares the requested spectrum of the observation
// and packages it for rendering.
func buildSpectrumImage(meta spectrum.Metadata, raw [][]float64, config *Config) (*SpectrumImage, error) {
	dyn, err := spectrum.NewDynamic(raw, meta)
	if err != nil {
		return nil, fmt.Errorf("building dynamic spectrum: %w", err)
	}

	title := fmt.Sprintf("%s @ %.2f MHz, MJD %.4f", meta.Source, meta.CenterFrequency, meta.MJD)

	var g *grid.Grid
	spec := &SpectrumImage{Title: title}
	switch config.Spectrum {
	case SpectrumDynamic:
		g = dyn.Grid()
		spec.XLabel = "time (s)"
		spec.YLabel = "frequency (MHz)"

	default:
		opts := []spectrum.SecondaryOption{
			spectrum.WithCropScales(config.FringeScale, config.DelayScale),
		}
		if config.FullDelayAxis {
			opts = append(opts, spectrum.WithFullDelayAxis())
		}
		sec, err := spectrum.NewSecondary(dyn, opts...)
		if err != nil {
			return nil, fmt.Errorf("building secondary spectrum: %w", err)
		}
		g = sec.Grid()
		spec.XLabel = "fringe frequency (mHz)"
		spec.YLabel = "delay (us)"
	}

	spec.XAxis = g.XAxis()
	spec.YAxis = g.YAxis()
	spec.Values = g.Data()
	spec.Bounds = powerBounds(spec.Values)
	return spec, nil
}
