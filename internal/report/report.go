// Package report turns classified observations, grid cells and statistics
// tables into the shapes consumed by maps, dashboards and spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	geojson "github.com/paulmach/go.geojson"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/grid"
	"github.com/yegors/gnss-jamming/internal/stats"
)

// ClassifiedPoint is a located value with the label and color of its bin
type ClassifiedPoint struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Value   float64 `json:"value"`
	Flight  string  `json:"flight,omitempty"`
	Samples int     `json:"samples,omitempty"`
	Bin     int     `json:"bin"`
	Label   string  `json:"label"`
	Color   string  `json:"color"`
}

// ClassifyPoints keeps the observations that fall in a bin. Unclassified
// observations are dropped.
func ClassifyPoints(obs []adsb.Observation, cls *bins.Classification) []ClassifiedPoint {
	out := make([]ClassifiedPoint, 0, len(obs))
	for _, o := range obs {
		i, ok := cls.Classify(o.NIC)
		if !ok {
			continue
		}
		out = append(out, ClassifiedPoint{
			Lat:    o.Lat,
			Lon:    o.Lon,
			Value:  o.NIC,
			Flight: o.Flight,
			Bin:    i,
			Label:  cls.Label(i),
			Color:  cls.Color(i),
		})
	}
	return out
}

// ClassifyCells classifies averaged grid cells by their rounded value
func ClassifyCells(cells []grid.Cell, cls *bins.Classification) []ClassifiedPoint {
	out := make([]ClassifiedPoint, 0, len(cells))
	for _, c := range cells {
		v := float64(c.Value)
		i, ok := cls.Classify(v)
		if !ok {
			continue
		}
		out = append(out, ClassifiedPoint{
			Lat:     c.Lat,
			Lon:     c.Lon,
			Value:   v,
			Samples: c.Samples,
			Bin:     i,
			Label:   cls.Label(i),
			Color:   cls.Color(i),
		})
	}
	return out
}

// WriteCSV writes table with one row per date. The header is "date", the
// bin labels, then one "<mode> % Jam: <label>" column per bin.
func WriteCSV(w io.Writer, table *stats.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{"date"}, table.Columns()...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range table.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Date.Format(stats.DateLayout))
		for _, v := range row.Values {
			record = append(record, strconv.Itoa(v))
		}
		for _, p := range row.Percents {
			record = append(record, strconv.FormatFloat(p, 'f', 2, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// GeoJSON builds a FeatureCollection of point features carrying the
// value, label and color of each point
func GeoJSON(points []ClassifiedPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewPointFeature([]float64{p.Lon, p.Lat})
		f.SetProperty("value", p.Value)
		f.SetProperty("bin", p.Bin)
		f.SetProperty("label", p.Label)
		f.SetProperty("color", p.Color)
		if p.Flight != "" {
			f.SetProperty("flight", p.Flight)
		}
		if p.Samples > 0 {
			f.SetProperty("samples", p.Samples)
		}
		fc.AddFeature(f)
	}
	return fc
}
