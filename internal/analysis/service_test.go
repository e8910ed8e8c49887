package analysis

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/report"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

type memorySource map[string][]adsb.Observation

func (m memorySource) Load(_ context.Context, date time.Time) ([]adsb.Observation, error) {
	obs, ok := m[date.Format(stats.DateLayout)]
	if !ok {
		return nil, apperr.NotFound("observations", date.Format(stats.DateLayout))
	}
	return obs, nil
}

type capturedReports []*Report

func (c *capturedReports) ReportReady(r *Report) { *c = append(*c, r) }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestRun(t *testing.T) {
	source := memorySource{
		"2024-01-01": {
			{Lat: 10, Lon: 20, NIC: 3, Flight: "A1", Country: "Chad"},
			{Lat: 10, Lon: 20, NIC: 7, Flight: "A1", Country: "Chad"},
			{Lat: 10, Lon: 20, NIC: 12, Flight: "B1", Country: "Chad"},
			{Lat: -30, Lon: 150, NIC: 2, Flight: "C1", Country: "Australia"},
		},
	}
	var reports capturedReports
	svc := NewService(source, nil, 0, logger.NewNop())
	svc.SetEvents(&reports)

	r, err := svc.Run(context.Background(), stats.Query{
		Start:   day(2024, 1, 1),
		End:     day(2024, 1, 2),
		Country: "Chad",
		Edges:   []float64{0, 5, 10, math.Inf(1)},
		Colors:  []string{"#00ff00", "#ffff00", "#ff0000"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := uuid.Parse(r.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", r.RunID, err)
	}
	if r.DateDescription != "range from 2024-01-01 to 2024-01-02" || r.RegionDescription != "Chad" || r.MapDate != "2024-01-01" {
		t.Errorf("unexpected descriptions %q, %q, %q", r.DateDescription, r.RegionDescription, r.MapDate)
	}
	if r.CellSize != 0.25 {
		t.Errorf("CellSize = %v, want 0.25", r.CellSize)
	}
	if len(r.Points) != 3 {
		t.Errorf("expected 3 classified points in Chad, got %d", len(r.Points))
	}

	wantCells := []report.ClassifiedPoint{{Lat: 10, Lon: 20, Value: 7, Samples: 3, Bin: 1, Label: "NIC = (5, 10]", Color: "#ffff00"}}
	if diff := cmp.Diff(wantCells, r.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}

	if len(r.Counts.Rows) != 2 || len(r.Flights.Rows) != 2 {
		t.Fatalf("expected two rows per table, got %d and %d", len(r.Counts.Rows), len(r.Flights.Rows))
	}
	if diff := cmp.Diff([]int{1, 1, 1}, r.Counts.Rows[0].Values); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1, 1}, r.Flights.Rows[0].Values); diff != "" {
		t.Errorf("flights mismatch (-want +got):\n%s", diff)
	}
	if r.Counts.Rows[1].Total != 0 {
		t.Errorf("missing day should be empty, got %+v", r.Counts.Rows[1])
	}

	if len(reports) != 1 || reports[0] != r {
		t.Errorf("expected the report to be announced once, got %d", len(reports))
	}
}

func TestRunRejectsBadQueries(t *testing.T) {
	svc := NewService(memorySource{}, nil, 0, logger.NewNop())

	_, err := svc.Run(context.Background(), stats.Query{
		Start:  day(2024, 1, 1),
		Series: []time.Time{*day(2024, 1, 5)},
		World:  true,
		Edges:  []float64{0, 5},
		Colors: []string{""},
	})
	if !apperr.IsConfig(err) {
		t.Errorf("Run() error = %v, want ConfigError", err)
	}

	_, err = svc.Run(context.Background(), stats.Query{
		Start:  day(2024, 1, 1),
		Custom: "baltic",
		Edges:  []float64{0, 5},
		Colors: []string{""},
	})
	if !apperr.IsConfig(err) {
		t.Errorf("Run() without polygon source error = %v, want ConfigError", err)
	}
}

func TestRunBadCellSize(t *testing.T) {
	svc := NewService(memorySource{"2024-01-01": {{Lat: 1, Lon: 1, NIC: 4, Flight: "X"}}}, nil, -1, logger.NewNop())

	_, err := svc.Run(context.Background(), stats.Query{
		Start:  day(2024, 1, 1),
		World:  true,
		Edges:  []float64{0, 5},
		Colors: []string{""},
	})
	if !apperr.IsComputation(err) {
		t.Errorf("Run() error = %v, want ComputationError", err)
	}
}
