package adsb

import (
	"strings"
)

// Observation is one aircraft position report reduced to the fields used
// for integrity statistics. Observations are immutable once stored.
type Observation struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	NIC     float64 `json:"nic"`
	RC      int     `json:"rc"`                // Radius of containment in meters
	Flight  string  `json:"flight"`            // Callsign with padding removed
	Hex     string  `json:"hex,omitempty"`     // ICAO 24-bit address
	Country string  `json:"country,omitempty"` // Country the position falls in, empty over water
}

// ValidPosition reports whether the observation lies on the globe
func (o Observation) ValidPosition() bool {
	return o.Lat >= -90 && o.Lat <= 90 && o.Lon >= -180 && o.Lon <= 180
}

// Snapshot is a single readsb-hist capture of every aircraft known at one instant
type Snapshot struct {
	Now      float64            `json:"now"`
	Messages int                `json:"messages"`
	Aircraft []SnapshotAircraft `json:"aircraft"`
}

// SnapshotAircraft is an aircraft entry in a snapshot. Numeric fields are
// FlexibleField because archives mix numbers and strings over the years.
type SnapshotAircraft struct {
	Hex          string        `json:"hex"`
	Type         string        `json:"type"`
	Flight       FlexibleField `json:"flight"`
	Lat          FlexibleField `json:"lat"`
	Lon          FlexibleField `json:"lon"`
	NIC          FlexibleField `json:"nic"`
	RC           FlexibleField `json:"rc"`
	Seen         FlexibleField `json:"seen"`
	LastPosition *LastPosition `json:"lastPosition,omitempty"`
}

// LastPosition holds the most recent position of an aircraft whose current
// position is stale
type LastPosition struct {
	Lat     FlexibleField `json:"lat"`
	Lon     FlexibleField `json:"lon"`
	NIC     FlexibleField `json:"nic"`
	RC      FlexibleField `json:"rc"`
	Flight  FlexibleField `json:"flight"`
	SeenPos FlexibleField `json:"seen_pos"`
}

// Observations converts every usable aircraft in the snapshot.
// Aircraft lacking a complete position report are skipped.
func (s *Snapshot) Observations() []Observation {
	out := make([]Observation, 0, len(s.Aircraft))
	for i := range s.Aircraft {
		if obs, ok := s.Aircraft[i].Convert(); ok {
			out = append(out, obs)
		}
	}
	return out
}

// normalizeFlight strips the space padding readsb adds to callsigns
func normalizeFlight(flight string) string {
	return strings.TrimSpace(flight)
}
