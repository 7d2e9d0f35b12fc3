// Package spectrum builds dynamic and secondary spectra from raw pulsar
// observation data. A dynamic spectrum is intensity over observation time
// and radio frequency; a secondary spectrum is its 2D power spectrum over
// delay and fringe frequency, where scintillation arcs appear as parabolas.
package spectrum

import (
	"errors"
	"fmt"
	"math"
)

// ErrMissingMetadata is returned when a required observation header field
// is absent or non-numeric.
var ErrMissingMetadata = errors.New("spectrum: missing or invalid metadata field")

// Metadata describes a single pulsar observation. It is captured once at
// ingestion and carried unchanged through the spectrum pipeline.
type Metadata struct {
	Source   string  `json:"source"`   // Pulsar name (FITS SOURCE)
	Filename string  `json:"filename"` // Originating file, used as the observation key
	Origin   string  `json:"origin,omitempty"`
	MJD      float64 `json:"mjd,omitempty"` // Observation epoch, Modified Julian Date

	CenterFrequency float64 `json:"centerFrequency"` // Centre frequency in MHz (FITS FREQ)
	Bandwidth       float64 `json:"bandwidth"`       // Bandwidth in MHz (FITS BW); sign is ignored
	IntegrationTime float64 `json:"integrationTime"` // Total integration time in seconds (FITS T_INT)
	ChannelCount    int     `json:"channelCount"`    // Number of frequency channels
	SubintCount     int     `json:"subintCount"`     // Number of time subintegrations

	// Rotate indicates the raw matrix is stored time-major and must be
	// transposed into channel-major order before processing.
	Rotate bool `json:"rotate,omitempty"`
}

// Validate reports the first required field that is absent or unusable.
func (m Metadata) Validate() error {
	switch {
	case m.Filename == "":
		return fmt.Errorf("%w: filename", ErrMissingMetadata)
	case m.Source == "":
		return fmt.Errorf("%w: source", ErrMissingMetadata)
	case !isUsable(m.CenterFrequency):
		return fmt.Errorf("%w: center frequency", ErrMissingMetadata)
	case !isUsable(m.Bandwidth):
		return fmt.Errorf("%w: bandwidth", ErrMissingMetadata)
	case !isUsable(m.IntegrationTime):
		return fmt.Errorf("%w: integration time", ErrMissingMetadata)
	case m.ChannelCount <= 0:
		return fmt.Errorf("%w: channel count", ErrMissingMetadata)
	case m.SubintCount <= 0:
		return fmt.Errorf("%w: subintegration count", ErrMissingMetadata)
	}
	return nil
}

func isUsable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
