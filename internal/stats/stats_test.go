package stats

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/region"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

type memorySource struct {
	days  map[string][]adsb.Observation
	fail  string
	loads []string
}

func (m *memorySource) Load(_ context.Context, date time.Time) ([]adsb.Observation, error) {
	key := date.Format(DateLayout)
	m.loads = append(m.loads, key)
	if key == m.fail {
		return nil, errors.New("disk on fire")
	}
	obs, ok := m.days[key]
	if !ok {
		return nil, apperr.NotFound("observations", key)
	}
	return obs, nil
}

type memoryPolygons map[string]geom.Polygonal

func (m memoryPolygons) LoadPolygon(name string) (geom.Polygonal, error) {
	p, ok := m[name]
	if !ok {
		return nil, apperr.NotFound("custom polygon", name)
	}
	return p, nil
}

func mustDay(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr(t time.Time) *time.Time { return &t }

func mustBins(t *testing.T, edges []float64) *bins.Classification {
	t.Helper()
	c, err := bins.New(edges, make([]string, len(edges)-1))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

var approx = cmpopts.EquateApprox(0, 0.05)

func TestScenarioThreeBins(t *testing.T) {
	src := &memorySource{days: map[string][]adsb.Observation{
		"2024-01-01": {
			{Lat: 10, Lon: 20, NIC: 3, Flight: "A1"},
			{Lat: 10, Lon: 20, NIC: 7, Flight: "A1"},
			{Lat: 10, Lon: 20, NIC: 12, Flight: "B1"},
		},
	}}
	cls := mustBins(t, []float64{0, 5, 10, math.Inf(1)})
	eng := NewEngine(src, logger.NewNop())

	counts, flights, err := eng.ComputeAll(context.Background(), []time.Time{mustDay("2024-01-01")}, region.WholeWorld{}, cls)
	if err != nil {
		t.Fatalf("ComputeAll() error = %v", err)
	}

	if diff := cmp.Diff([]int{1, 1, 1}, counts.Rows[0].Values); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{33.3, 33.3, 33.3}, counts.Rows[0].Percents, approx); diff != "" {
		t.Errorf("count percentages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1, 1}, flights.Rows[0].Values); diff != "" {
		t.Errorf("flights mismatch (-want +got):\n%s", diff)
	}
}

func TestFlightsCountedPerBin(t *testing.T) {
	obs := []adsb.Observation{
		{NIC: 1, Flight: "A1"},
		{NIC: 2, Flight: "A1"},
		{NIC: 8, Flight: "A1"},
		{NIC: 9, Flight: "B2"},
		{NIC: 9, Flight: "B2"},
		{NIC: 0, Flight: "C3"},
		{NIC: 11, Flight: "D4"},
	}
	cls := mustBins(t, []float64{0, 5, 10})

	counts, flights := Tally(obs, cls)
	if diff := cmp.Diff([]int{2, 3}, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	// A1 appears in both bins and is counted in each
	if diff := cmp.Diff([]int{1, 2}, flights); diff != "" {
		t.Errorf("flights mismatch (-want +got):\n%s", diff)
	}

	pct, total := Percentages(flights)
	if total != 3 {
		t.Errorf("flight total = %d, want 3", total)
	}
	if diff := cmp.Diff([]float64{33.33, 66.67}, pct, approx); diff != "" {
		t.Errorf("flight percentages mismatch (-want +got):\n%s", diff)
	}
}

func TestPercentagesSumTo100(t *testing.T) {
	for _, values := range [][]int{{1}, {3, 4, 5}, {0, 0, 7, 1}, {1000, 1, 1, 1, 1, 1, 1, 1, 1, 1}} {
		pct, _ := Percentages(values)
		sum := 0.0
		for _, p := range pct {
			sum += p
		}
		if math.Abs(sum-100) > 1e-9 {
			t.Errorf("Percentages(%v) sums to %v", values, sum)
		}
	}

	pct, total := Percentages([]int{0, 0, 0})
	if total != 0 || cmp.Diff([]float64{0, 0, 0}, pct) != "" {
		t.Errorf("Percentages(zeros) = %v, %d; want zeros", pct, total)
	}
}

func TestComputeMissingDaysAreEmpty(t *testing.T) {
	src := &memorySource{days: map[string][]adsb.Observation{
		"2024-01-02": {{NIC: 4, Flight: "X"}},
	}}
	cls := mustBins(t, []float64{0, 5})
	eng := NewEngine(src, logger.NewNop())

	dates, _, err := ResolveDates(ptr(mustDay("2024-01-01")), ptr(mustDay("2024-01-03")), nil)
	if err != nil {
		t.Fatal(err)
	}

	table, err := eng.Compute(context.Background(), dates, region.WholeWorld{}, cls, ModeCounts)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(table.Rows))
	}
	got := []int{table.Rows[0].Total, table.Rows[1].Total, table.Rows[2].Total}
	if diff := cmp.Diff([]int{0, 1, 0}, got); diff != "" {
		t.Errorf("row totals mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2024-01-01", "2024-01-02", "2024-01-03"}, src.loads); diff != "" {
		t.Errorf("load order mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeLoadFailureIsFatal(t *testing.T) {
	src := &memorySource{fail: "2024-01-01"}
	eng := NewEngine(src, logger.NewNop())

	_, err := eng.Compute(context.Background(), []time.Time{mustDay("2024-01-01")}, region.WholeWorld{}, mustBins(t, []float64{0, 5}), ModeFlights)
	if err == nil || apperr.IsNotFound(err) {
		t.Fatalf("expected a load failure, got %v", err)
	}
}

func TestComputeRegionFilter(t *testing.T) {
	src := &memorySource{days: map[string][]adsb.Observation{
		"2024-06-01": {
			{Lat: 5, Lon: 5, NIC: 1, Flight: "IN", Country: "Alpha"},
			{Lat: 50, Lon: 50, NIC: 1, Flight: "OUT", Country: "Beta"},
		},
	}}
	polygons := memoryPolygons{"square": geom.Polygon{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0}}}}
	eng := NewEngine(src, logger.NewNop())

	for _, q := range []Query{
		{Start: ptr(mustDay("2024-06-01")), Custom: "square", Edges: []float64{0, 5}, Colors: []string{""}},
		{Start: ptr(mustDay("2024-06-01")), Country: "Alpha", Edges: []float64{0, 5}, Colors: []string{""}},
	} {
		plan, err := q.Validate()
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		filter, err := plan.Filter(polygons)
		if err != nil {
			t.Fatalf("Filter() error = %v", err)
		}
		table, err := eng.Compute(context.Background(), plan.Dates, filter, plan.Classification, ModeCounts)
		if err != nil {
			t.Fatal(err)
		}
		if got := table.Rows[0].Values[0]; got != 1 {
			t.Errorf("%s: expected 1 observation in region, got %d", plan.RegionDescription, got)
		}
	}

	plan, err := Query{Start: ptr(mustDay("2024-06-01")), Custom: "circle", Edges: []float64{0, 5}, Colors: []string{""}}.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := plan.Filter(polygons); !apperr.IsConfig(err) {
		t.Errorf("Filter() for unknown polygon error = %v, want ConfigError", err)
	}
}

func TestResolveDates(t *testing.T) {
	jan1, jan3 := mustDay("2024-01-01"), mustDay("2024-01-03")

	dates, desc, err := ResolveDates(&jan1, &jan3, nil)
	if err != nil {
		t.Fatalf("ResolveDates() error = %v", err)
	}
	want := []time.Time{jan1, mustDay("2024-01-02"), jan3}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
	if desc != "range from 2024-01-01 to 2024-01-03" {
		t.Errorf("description = %q", desc)
	}

	dates, desc, err = ResolveDates(&jan3, nil, nil)
	if err != nil || len(dates) != 1 || desc != "2024-01-03" {
		t.Errorf("start only = %v, %q, %v", dates, desc, err)
	}

	series := []time.Time{jan3, jan1}
	dates, desc, err = ResolveDates(nil, nil, series)
	if err != nil || cmp.Diff(series, dates) != "" || desc != "Dates: 2024-01-03, 2024-01-01" {
		t.Errorf("series = %v, %q, %v", dates, desc, err)
	}

	bad := []struct {
		name       string
		start, end *time.Time
		series     []time.Time
	}{
		{"nothing", nil, nil, nil},
		{"end only", nil, &jan3, nil},
		{"series and start", &jan1, nil, series},
		{"series and end", nil, &jan3, series},
		{"start equals end", &jan1, &jan1, nil},
		{"start after end", &jan3, &jan1, nil},
	}
	for _, tt := range bad {
		if _, _, err := ResolveDates(tt.start, tt.end, tt.series); !apperr.IsConfig(err) {
			t.Errorf("%s: error = %v, want ConfigError", tt.name, err)
		}
	}
}

func TestQueryValidate(t *testing.T) {
	start := ptr(mustDay("2024-01-01"))
	edges := []float64{0, 5, 10}
	colors := []string{"#00ff00", "#ff0000"}

	bad := []struct {
		name string
		q    Query
	}{
		{"world and country", Query{Start: start, World: true, Country: "Chad", Edges: edges, Colors: colors}},
		{"world and custom", Query{Start: start, World: true, Custom: "baltic", Edges: edges, Colors: colors}},
		{"no region", Query{Start: start, Edges: edges, Colors: colors}},
		{"country and custom", Query{Start: start, Country: "Chad", Custom: "baltic", Edges: edges, Colors: colors}},
		{"color mismatch", Query{Start: start, World: true, Edges: edges, Colors: colors[:1]}},
		{"no dates", Query{World: true, Edges: edges, Colors: colors}},
	}
	for _, tt := range bad {
		if _, err := tt.q.Validate(); !apperr.IsConfig(err) {
			t.Errorf("%s: error = %v, want ConfigError", tt.name, err)
		}
	}

	plan, err := Query{Start: start, World: true, Edges: edges, Colors: colors}.Validate()
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if plan.RegionDescription != "the whole world" || plan.DateDescription != "2024-01-01" || plan.Classification.Len() != 2 {
		t.Errorf("unexpected plan %+v", plan)
	}
}

func TestInputQuery(t *testing.T) {
	q, err := Input{
		Series: []string{"Feb 5, 2024", "5th February 2024", "2/4/2024", ""},
		World:  true,
		Edges:  "0, 5, inf",
	}.Query()
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := []time.Time{mustDay("2024-02-05"), mustDay("2024-02-05"), mustDay("2024-02-04")}
	if diff := cmp.Diff(want, q.Series); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
	if len(q.Colors) != 2 {
		t.Errorf("expected two default colors, got %v", q.Colors)
	}

	if _, err := (Input{Start: "someday", World: true, Edges: "0,1"}).Query(); !apperr.IsConfig(err) {
		t.Errorf("bad date error = %v, want ConfigError", err)
	}
}

func TestTableColumnsAndJSON(t *testing.T) {
	table := &Table{
		Mode:   ModeFlights,
		Labels: []string{"NIC = (0, 5]", "NIC = (5, inf]"},
		Rows:   []Row{{Date: mustDay("2024-01-01"), Values: []int{1, 3}, Percents: []float64{25, 75}, Total: 4}},
	}
	want := []string{"NIC = (0, 5]", "NIC = (5, inf]", "flights % Jam: NIC = (0, 5]", "flights % Jam: NIC = (5, inf]"}
	if diff := cmp.Diff(want, table.Columns()); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}

	data, err := json.Marshal(table.Rows[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"date":"2024-01-01"`) {
		t.Errorf("row JSON %s lacks plain date", data)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("flights"); err != nil || m != ModeFlights {
		t.Errorf("ParseMode(flights) = %v, %v", m, err)
	}
	if _, err := ParseMode("average"); !apperr.IsConfig(err) {
		t.Errorf("ParseMode(average) error = %v, want ConfigError", err)
	}
}
