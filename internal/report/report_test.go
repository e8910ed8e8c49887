package report

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	geojson "github.com/paulmach/go.geojson"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/grid"
	"github.com/yegors/gnss-jamming/internal/stats"
)

func classification(t *testing.T) *bins.Classification {
	t.Helper()
	cls, err := bins.New([]float64{0, 5, math.Inf(1)}, []string{"#ff0000", ""})
	if err != nil {
		t.Fatal(err)
	}
	return cls
}

func TestClassifyPoints(t *testing.T) {
	obs := []adsb.Observation{
		{Lat: 10, Lon: 20, NIC: 3, Flight: "A1"},
		{Lat: 11, Lon: 21, NIC: 0, Flight: "Z9"},
		{Lat: 12, Lon: 22, NIC: 8, Flight: "B1"},
	}

	got := ClassifyPoints(obs, classification(t))
	want := []ClassifiedPoint{
		{Lat: 10, Lon: 20, Value: 3, Flight: "A1", Bin: 0, Label: "NIC = (0, 5]", Color: "#ff0000"},
		{Lat: 12, Lon: 22, Value: 8, Flight: "B1", Bin: 1, Label: "NIC = (5, inf]", Color: bins.DefaultColor},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ClassifyPoints() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyCells(t *testing.T) {
	cells := []grid.Cell{
		{Lat: 0, Lon: 0, Value: 5, Samples: 4},
		{Lat: 1, Lon: 1, Value: 0, Samples: 1},
	}

	got := ClassifyCells(cells, classification(t))
	want := []ClassifiedPoint{{Value: 5, Samples: 4, Bin: 0, Label: "NIC = (0, 5]", Color: "#ff0000"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ClassifyCells() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV(t *testing.T) {
	table := &stats.Table{
		Mode:   stats.ModeCounts,
		Labels: []string{"NIC = (0, 5]", "NIC = (5, inf]"},
		Rows: []stats.Row{
			{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Values: []int{1, 2}, Percents: []float64{100.0 / 3, 200.0 / 3}, Total: 3},
			{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Values: []int{0, 0}, Percents: []float64{0, 0}},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "date,\"NIC = (0, 5]\",\"NIC = (5, inf]\",\"counts % Jam: NIC = (0, 5]\",\"counts % Jam: NIC = (5, inf]\"\n" +
		"2024-01-01,1,2,33.33,66.67\n" +
		"2024-01-02,0,0,0.00,0.00\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("WriteCSV() mismatch (-want +got):\n%s", diff)
	}
}

func TestGeoJSON(t *testing.T) {
	points := []ClassifiedPoint{{Lat: 10, Lon: 20, Value: 3, Flight: "A1", Label: "NIC = (0, 5]", Color: "#ff0000"}}

	data, err := GeoJSON(points).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection() error = %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	f := fc.Features[0]
	if diff := cmp.Diff([]float64{20, 10}, f.Geometry.Point); diff != "" {
		t.Errorf("coordinates mismatch (-want +got):\n%s", diff)
	}
	if got := f.PropertyMustString("color"); got != "#ff0000" {
		t.Errorf("color = %q", got)
	}
	if got := f.PropertyMustString("flight"); got != "A1" {
		t.Errorf("flight = %q", got)
	}
	if _, ok := f.Properties["samples"]; ok {
		t.Error("raw point should not carry samples")
	}
}
