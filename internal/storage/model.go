package storage

import (
	"time"

	"github.com/pulsarpkg/arcfinder/internal/spectrum"
)

// Profile kinds stored alongside an observation. A new search result of
// the same kind replaces the previous one.
const (
	ProfileCurvature = "curvature"
	ProfileOffset    = "offset"
	ProfileWidth     = "width"
)

// Observation is one archived observation: its metadata plus bookkeeping
// columns. The raw intensity matrix is stored separately and fetched with
// ObservationData.
type Observation struct {
	ID       int64
	Ingested time.Time
	Meta     spectrum.Metadata
}

// Filter narrows an observation listing. Zero fields are ignored. Source
// matches as a substring; the numeric bounds are inclusive.
type Filter struct {
	Source  string
	MJDMin  float64
	MJDMax  float64
	FreqMin float64
	FreqMax float64
}

// ProfilePoint is one (key, power) pair of a stored search profile.
type ProfilePoint struct {
	Key   float64
	Power float64
}
