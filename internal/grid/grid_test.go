package grid

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
)

func TestRoundHalfDown(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2.5, 2},
		{3.5, 3},
		{2.4, 2},
		{2.6, 3},
		{0.5, 0},
		{0, 0},
		{7, 7},
		{-2.5, -2},
		{-2.6, -3},
		{720.5, 720},
	}

	for _, tt := range tests {
		if got := RoundHalfDown(tt.in); got != tt.want {
			t.Errorf("RoundHalfDown(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewDimensions(t *testing.T) {
	tests := []struct {
		cellSize float64
		want     Dimensions
	}{
		{0.25, Dimensions{Rows: 721, Cols: 1441}},
		{1, Dimensions{Rows: 181, Cols: 361}},
		{40, Dimensions{Rows: 5, Cols: 10}}, // leftover 20 is exactly half a cell
		{50, Dimensions{Rows: 5, Cols: 8}},  // 180 leaves 30, 360 leaves 10
	}

	for _, tt := range tests {
		got, err := NewDimensions(tt.cellSize)
		if err != nil {
			t.Fatalf("NewDimensions(%v) error = %v", tt.cellSize, err)
		}
		if got != tt.want {
			t.Errorf("NewDimensions(%v) = %+v, want %+v", tt.cellSize, got, tt.want)
		}
	}
}

func TestNewDimensionsRejectsBadCellSize(t *testing.T) {
	for _, cs := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewDimensions(cs); !apperr.IsComputation(err) {
			t.Errorf("NewDimensions(%v) error = %v, want ComputationError", cs, err)
		}
	}
}

func TestEveryPositionMapsToOneCell(t *testing.T) {
	for _, cs := range []float64{0.25, 0.3, 0.5, 1, 7, 40, 50} {
		dims, err := NewDimensions(cs)
		if err != nil {
			t.Fatal(err)
		}
		for lat := -90.0; lat <= 90; lat += 0.37 {
			for _, lon := range []float64{-180, -179.99, -45.125, 0, 33.3, 179.875, 180} {
				row, col, err := dims.Index(lat, lon, cs)
				if err != nil {
					t.Fatalf("cell size %v: Index(%v, %v) error = %v", cs, lat, lon, err)
				}
				clat, clon := Center(row, col, cs)
				if math.Abs(clat-lat) > cs/2+1e-9 || math.Abs(clon-lon) > cs/2+1e-9 {
					t.Errorf("cell size %v: center (%v, %v) too far from (%v, %v)", cs, clat, clon, lat, lon)
				}
			}
		}
		for _, lat := range []float64{-90, 90} {
			if _, _, err := dims.Index(lat, 180, cs); err != nil {
				t.Errorf("cell size %v: corner %v,180 error = %v", cs, lat, err)
			}
		}
	}
}

func TestAggregate(t *testing.T) {
	points := []adsb.Observation{
		{Lat: 10, Lon: 20, NIC: 3},
		{Lat: 10.1, Lon: 20.1, NIC: 4},
		{Lat: 10.05, Lon: 19.95, NIC: 0},
		{Lat: -89.875, Lon: -180, NIC: 8},
		{Lat: 45, Lon: 90, NIC: 0},
		{Lat: 45.1, Lon: 90.1, NIC: 0},
	}

	got, err := Aggregate(points, DefaultCellSize)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	want := []Cell{
		{Row: 0, Col: 0, Lat: -90, Lon: -180, Value: 8, Samples: 1},
		{Row: 400, Col: 800, Lat: 10, Lon: 20, Value: 3, Samples: 2},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Cell{}, "AreaKm2")); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateZeroValuedCellIsEmpty(t *testing.T) {
	got, err := Aggregate([]adsb.Observation{{Lat: 1, Lon: 1, NIC: 0}, {Lat: 1, Lon: 1, NIC: 0}}, DefaultCellSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no cells, got %d", len(got))
	}
}

func TestAggregateZeroCellSize(t *testing.T) {
	_, err := Aggregate([]adsb.Observation{{Lat: 1, Lon: 1, NIC: 5}}, 0)
	if !apperr.IsComputation(err) {
		t.Fatalf("expected ComputationError, got %v", err)
	}
}

func TestCellArea(t *testing.T) {
	equator := CellArea(0, 0, DefaultCellSize)
	if equator < 760 || equator > 785 {
		t.Errorf("equatorial cell area = %.1f km², want about 773", equator)
	}
	if polar := CellArea(90, 0, DefaultCellSize); polar >= equator/10 {
		t.Errorf("polar cell area %.1f should be far smaller than %.1f", polar, equator)
	}
}
