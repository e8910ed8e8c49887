// Package stats computes per-day jamming statistics over date ranges.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/region"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// Mode selects what a statistics table counts
type Mode string

const (
	// ModeCounts counts observations per bin
	ModeCounts Mode = "counts"
	// ModeFlights counts distinct flights per bin. A flight seen in several
	// bins on the same day is counted once in each of them.
	ModeFlights Mode = "flights"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCounts, ModeFlights:
		return Mode(s), nil
	default:
		return "", apperr.Config("mode", "%q is not one of counts or flights", s)
	}
}

// ObservationSource loads the observations recorded on a day. A day
// without data is reported as an apperr.NotFoundError.
type ObservationSource interface {
	Load(ctx context.Context, date time.Time) ([]adsb.Observation, error)
}

// Row holds one day of a statistics table
type Row struct {
	Date     time.Time `json:"date"`
	Values   []int     `json:"values"`
	Percents []float64 `json:"percents"`
	Total    int       `json:"total"`
}

// MarshalJSON writes the date as a plain calendar day
func (r Row) MarshalJSON() ([]byte, error) {
	type plain Row
	return json.Marshal(struct {
		Date string `json:"date"`
		plain
	}{
		Date:  r.Date.Format(DateLayout),
		plain: plain(r),
	})
}

// Table holds one row per requested date
type Table struct {
	Mode   Mode     `json:"mode"`
	Labels []string `json:"labels"`
	Colors []string `json:"colors"`
	Rows   []Row    `json:"rows"`
}

// Columns returns the value and percentage column headers, e.g.
// "NIC = (0, 5]" followed by "counts % Jam: NIC = (0, 5]"
func (t *Table) Columns() []string {
	cols := make([]string, 0, 2*len(t.Labels))
	cols = append(cols, t.Labels...)
	for _, l := range t.Labels {
		cols = append(cols, fmt.Sprintf("%s %% Jam: %s", t.Mode, l))
	}
	return cols
}

// Engine computes statistics tables
type Engine struct {
	source ObservationSource
	logger *logger.Logger
}

// NewEngine creates a statistics engine reading from source
func NewEngine(source ObservationSource, log *logger.Logger) *Engine {
	return &Engine{
		source: source,
		logger: log.Named("stats"),
	}
}

// Compute builds the table for a single mode
func (e *Engine) Compute(ctx context.Context, dates []time.Time, filter region.Filter, cls *bins.Classification, mode Mode) (*Table, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	counts, flights, err := e.ComputeAll(ctx, dates, filter, cls)
	if err != nil {
		return nil, err
	}
	if mode == ModeFlights {
		return flights, nil
	}
	return counts, nil
}

// ComputeAll builds the counts and flights tables in one pass, loading
// each date once. Dates without data produce all-zero rows.
func (e *Engine) ComputeAll(ctx context.Context, dates []time.Time, filter region.Filter, cls *bins.Classification) (counts, flights *Table, err error) {
	start := time.Now()

	counts = newTable(ModeCounts, cls, len(dates))
	flights = newTable(ModeFlights, cls, len(dates))

	for _, date := range dates {
		obs, err := e.loadDay(ctx, date)
		if err != nil {
			return nil, nil, err
		}
		obs = region.Apply(filter, obs)

		c, f := Tally(obs, cls)
		counts.Rows = append(counts.Rows, newRow(date, c))
		flights.Rows = append(flights.Rows, newRow(date, f))
	}

	e.logger.Debug("Computed statistics",
		logger.Int("dates", len(dates)),
		logger.String("region", filter.Describe()),
		logger.Int("bins", cls.Len()),
		logger.Duration("duration", time.Since(start)))

	return counts, flights, nil
}

// loadDay returns the observations of date, treating a missing day as empty
func (e *Engine) loadDay(ctx context.Context, date time.Time) ([]adsb.Observation, error) {
	obs, err := e.source.Load(ctx, date)
	if err != nil {
		if apperr.IsNotFound(err) {
			e.logger.Warn("No data for date, using an empty set",
				logger.String("date", date.Format(DateLayout)))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", date.Format(DateLayout), err)
	}
	return obs, nil
}

// Tally counts classified observations and distinct flights per bin.
// Unclassified observations are ignored.
func Tally(obs []adsb.Observation, cls *bins.Classification) (counts, flights []int) {
	n := cls.Len()
	counts = make([]int, n)
	flights = make([]int, n)
	seen := make([]map[string]struct{}, n)
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}

	for _, o := range obs {
		i, ok := cls.Classify(o.NIC)
		if !ok {
			continue
		}
		counts[i]++
		if _, dup := seen[i][o.Flight]; !dup {
			seen[i][o.Flight] = struct{}{}
			flights[i]++
		}
	}
	return counts, flights
}

// Percentages returns each value as a share of their sum. All shares are
// zero when the sum is zero.
func Percentages(values []int) ([]float64, int) {
	total := 0
	for _, v := range values {
		total += v
	}
	out := make([]float64, len(values))
	if total == 0 {
		return out, 0
	}
	for i, v := range values {
		out[i] = float64(v) / float64(total) * 100
	}
	return out, total
}

func newTable(mode Mode, cls *bins.Classification, rows int) *Table {
	return &Table{
		Mode:   mode,
		Labels: cls.Labels(),
		Colors: cls.Colors(),
		Rows:   make([]Row, 0, rows),
	}
}

func newRow(date time.Time, values []int) Row {
	pct, total := Percentages(values)
	return Row{
		Date:     date,
		Values:   values,
		Percents: pct,
		Total:    total,
	}
}
