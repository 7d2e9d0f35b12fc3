// Package fitsio reads pulsar dynamic spectra from FITS archive files:
// a two-dimensional intensity image plus the observation header keys the
// analysis pipeline needs.
package fitsio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/siravan/fits"

	"github.com/pulsarpkg/arcfinder/internal/spectrum"
)

// ErrNoImage is returned when the file contains no two-dimensional image
// HDU.
var ErrNoImage = errors.New("fitsio: no 2D image HDU")

// Header keys carried by observation archives.
const (
	keyFrequency   = "FREQ"
	keyBandwidth   = "BW"
	keyIntegration = "T_INT"
	keyMJD         = "MJD"
	keySource      = "SOURCE"
	keyOrigin      = "ORIGIN"
)

// Read parses a FITS stream and returns the observation metadata and the
// raw intensity matrix of its first 2D image HDU, indexed [row][column].
//
// Channels run along image rows and subintegrations along columns; when
// the archive stores the transposed layout the caller sets rotate, which
// swaps the channel and subintegration counts and is carried in the
// metadata so the spectrum builder can undo the transposition. filename is
// recorded as provenance only.
func Read(r io.Reader, filename string, rotate bool) (spectrum.Metadata, [][]float64, error) {
	units, err := fits.Open(r)
	if err != nil {
		return spectrum.Metadata{}, nil, fmt.Errorf("parsing FITS: %w", err)
	}

	var unit *fits.Unit
	for _, u := range units {
		if u.HasImage() && len(u.Naxis) == 2 {
			unit = u
			break
		}
	}
	if unit == nil {
		return spectrum.Metadata{}, nil, ErrNoImage
	}

	meta, err := headerMetadata(unit.Keys, filename, rotate)
	if err != nil {
		return spectrum.Metadata{}, nil, err
	}

	// Naxis[0] is NAXIS1, the row length.
	cols, rows := unit.Naxis[0], unit.Naxis[1]
	raw := make([][]float64, rows)
	for y := 0; y < rows; y++ {
		raw[y] = make([]float64, cols)
		for x := 0; x < cols; x++ {
			raw[y][x] = unit.FloatAt(x, y)
		}
	}
	return meta, raw, nil
}

// ReadFile reads an observation archive from disk. The base name of path
// becomes the metadata filename.
func ReadFile(path string, rotate bool) (meta spectrum.Metadata, raw [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return spectrum.Metadata{}, nil, fmt.Errorf("opening archive: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing archive: %w", cErr)
		}
	}()

	return Read(f, filepath.Base(path), rotate)
}

func headerMetadata(keys map[string]interface{}, filename string, rotate bool) (spectrum.Metadata, error) {
	meta := spectrum.Metadata{
		Filename: filename,
		Rotate:   rotate,
	}

	var err error
	if meta.CenterFrequency, err = floatKey(keys, keyFrequency); err != nil {
		return spectrum.Metadata{}, err
	}
	if meta.Bandwidth, err = floatKey(keys, keyBandwidth); err != nil {
		return spectrum.Metadata{}, err
	}
	if meta.IntegrationTime, err = floatKey(keys, keyIntegration); err != nil {
		return spectrum.Metadata{}, err
	}
	if meta.Source, err = stringKey(keys, keySource); err != nil {
		return spectrum.Metadata{}, err
	}

	// MJD and ORIGIN are informational and some archives omit them.
	meta.MJD, _ = floatKey(keys, keyMJD)
	meta.Origin, _ = stringKey(keys, keyOrigin)

	nx, err := intKey(keys, "NAXIS1")
	if err != nil {
		return spectrum.Metadata{}, err
	}
	ny, err := intKey(keys, "NAXIS2")
	if err != nil {
		return spectrum.Metadata{}, err
	}
	if rotate {
		meta.ChannelCount, meta.SubintCount = nx, ny
	} else {
		meta.ChannelCount, meta.SubintCount = ny, nx
	}

	return meta, nil
}

func floatKey(keys map[string]interface{}, name string) (float64, error) {
	switch v := keys[name].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("header key %s: %w", name, spectrum.ErrMissingMetadata)
	}
}

func intKey(keys map[string]interface{}, name string) (int, error) {
	v, ok := keys[name].(int)
	if !ok {
		return 0, fmt.Errorf("header key %s: %w", name, spectrum.ErrMissingMetadata)
	}
	return v, nil
}

func stringKey(keys map[string]interface{}, name string) (string, error) {
	v, ok := keys[name].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("header key %s: %w", name, spectrum.ErrMissingMetadata)
	}
	return v, nil
}
