// Package grid reduces point observations onto a fixed-resolution
// latitude/longitude grid.
//
// A cell is centered on every multiple of the cell size, starting at the
// south pole and the antimeridian, so the index of a coordinate is its
// offset divided by the cell size and rounded with RoundHalfDown.
package grid

import (
	"math"
	"sort"

	"github.com/golang/geo/s2"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultCellSize is the grid resolution in degrees
	DefaultCellSize = 0.25

	latSpan = 180.0
	lonSpan = 360.0

	earthRadiusKm = 6371.0088
)

// Cell is a populated grid cell reduced to its rounded mean integrity value
type Cell struct {
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	Lat     float64 `json:"lat"` // Cell center
	Lon     float64 `json:"lon"` // Cell center
	Value   int     `json:"value"`
	Samples int     `json:"samples"`
	AreaKm2 float64 `json:"area_km2"`
}

// Dimensions is the number of rows and columns of a grid
type Dimensions struct {
	Rows int
	Cols int
}

// RoundHalfDown rounds to the nearest integer, sending exact halves toward
// zero: 2.5 becomes 2 and -2.5 becomes -2.
func RoundHalfDown(x float64) int {
	t := math.Trunc(x)
	if math.Abs(x-t) == 0.5 {
		return int(t)
	}
	return int(math.Round(x))
}

// binCount returns how many cells cover span. An exact multiple gets one
// extra cell so both endpoints have a centered cell; otherwise one extra
// cell is enough when the leftover is at most half a cell, and two are
// needed beyond that.
//
// The leftover comes from floating point modulo, so resolutions far below
// 0.25 degrees can land on the wrong branch.
func binCount(span, cellSize float64) int {
	rem := math.Mod(span, cellSize)
	switch {
	case rem == 0:
		return int(span/cellSize) + 1
	case rem <= cellSize/2:
		return int(math.Floor(span/cellSize)) + 1
	default:
		return int(math.Floor(span/cellSize)) + 2
	}
}

// NewDimensions derives the grid size for a cell size in degrees
func NewDimensions(cellSize float64) (Dimensions, error) {
	if cellSize == 0 || math.IsNaN(cellSize) {
		return Dimensions{}, apperr.Computation("grid dimensions", "division by zero cell size")
	}
	if cellSize < 0 || math.IsInf(cellSize, 0) {
		return Dimensions{}, apperr.Computation("grid dimensions", "cell size must be a positive finite number, got %v", cellSize)
	}
	return Dimensions{
		Rows: binCount(latSpan, cellSize),
		Cols: binCount(lonSpan, cellSize),
	}, nil
}

// Index returns the cell holding lat/lon
func (d Dimensions) Index(lat, lon, cellSize float64) (row, col int, err error) {
	row = RoundHalfDown((lat + 90) / cellSize)
	col = RoundHalfDown((lon + 180) / cellSize)
	if row < 0 || row >= d.Rows || col < 0 || col >= d.Cols {
		return 0, 0, apperr.Computation("grid index", "position %.6f,%.6f falls outside the %dx%d grid", lat, lon, d.Rows, d.Cols)
	}
	return row, col, nil
}

// Center returns the coordinate a cell is centered on
func Center(row, col int, cellSize float64) (lat, lon float64) {
	return float64(row)*cellSize - 90, float64(col)*cellSize - 180
}

// CellArea returns the surface area of a cell in square kilometers.
// Cells at the poles are clipped to the valid latitude range.
func CellArea(lat, lon, cellSize float64) float64 {
	rect := s2.RectFromCenterSize(s2.LatLngFromDegrees(lat, lon), s2.LatLngFromDegrees(cellSize, cellSize))
	return rect.Area() * earthRadiusKm * earthRadiusKm
}

// Aggregate buckets observations into cells and reduces each populated cell
// to RoundHalfDown of its mean NIC. Observations with a NIC of exactly 0
// are unreliable and ignored. Cells are returned in row-major order.
func Aggregate(points []adsb.Observation, cellSize float64) ([]Cell, error) {
	dims, err := NewDimensions(cellSize)
	if err != nil {
		return nil, err
	}

	buckets := make(map[int][]float64)
	for _, p := range points {
		if p.NIC == 0 {
			continue
		}
		row, col, err := dims.Index(p.Lat, p.Lon, cellSize)
		if err != nil {
			return nil, err
		}
		key := row*dims.Cols + col
		buckets[key] = append(buckets[key], p.NIC)
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	cells := make([]Cell, 0, len(keys))
	for _, k := range keys {
		values := buckets[k]
		row, col := k/dims.Cols, k%dims.Cols
		lat, lon := Center(row, col, cellSize)
		cells = append(cells, Cell{
			Row:     row,
			Col:     col,
			Lat:     lat,
			Lon:     lon,
			Value:   RoundHalfDown(floats.Sum(values) / float64(len(values))),
			Samples: len(values),
			AreaKm2: CellArea(lat, lon, cellSize),
		})
	}
	return cells, nil
}
