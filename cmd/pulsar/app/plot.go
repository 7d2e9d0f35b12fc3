package app

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pulsarpkg/arcfinder/internal/arcfind"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

var plotLineColor = color.RGBA{B: 196, A: 255}

// plotProfiles writes one PNG per stored profile into dir.
func plotProfiles(dir, source string,
	curvature arcfind.CurvatureProfile, offsets arcfind.OffsetProfile, widths arcfind.WidthProfile) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}

	if curvature != nil {
		pts := make(plotter.XYs, len(curvature))
		for i, p := range curvature {
			pts[i].X, pts[i].Y = p.Eta, p.Power
		}
		title := fmt.Sprintf("%s: arc power by curvature", source)
		if err := savePlot(filepath.Join(dir, "curvature.png"), title, "curvature (s^3)", pts); err != nil {
			return err
		}
	}
	if offsets != nil {
		pts := make(plotter.XYs, len(offsets))
		for i, p := range offsets {
			pts[i].X, pts[i].Y = p.X, p.Power
		}
		title := fmt.Sprintf("%s: power along the arc", source)
		if err := savePlot(filepath.Join(dir, "arc-power.png"), title, "fringe frequency (mHz)", pts); err != nil {
			return err
		}
	}
	if widths != nil {
		pts := make(plotter.XYs, len(widths))
		for i, p := range widths {
			pts[i].X, pts[i].Y = p.Offset, p.Power
		}
		title := fmt.Sprintf("%s: arc thickness", source)
		if err := savePlot(filepath.Join(dir, "width.png"), title, "apex offset (mHz)", pts); err != nil {
			return err
		}
	}
	return nil
}

func savePlot(path, title, xLabel string, pts plotter.XYs) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "mean power (dB)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building line for %s: %w", path, err)
	}
	line.Color = plotLineColor
	p.Add(line)

	if err = p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
