// Package analysis runs a complete jamming analysis: maps of the first
// requested day plus the per-day statistics over the whole selection.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/grid"
	"github.com/yegors/gnss-jamming/internal/region"
	"github.com/yegors/gnss-jamming/internal/report"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// Events receives finished reports
type Events interface {
	ReportReady(r *Report)
}

// Report is the result of one analysis run
type Report struct {
	RunID             string                   `json:"run_id"`
	CreatedAt         time.Time                `json:"created_at"`
	DateDescription   string                   `json:"date_description"`
	RegionDescription string                   `json:"region_description"`
	MapDate           string                   `json:"map_date"`
	CellSize          float64                  `json:"cell_size"`
	Bins              []bins.Bin               `json:"bins"`
	Points            []report.ClassifiedPoint `json:"points"`
	Cells             []report.ClassifiedPoint `json:"cells"`
	Counts            *stats.Table             `json:"counts"`
	Flights           *stats.Table             `json:"flights"`
	Duration          time.Duration            `json:"duration"`
}

// Service runs analyses against an observation source
type Service struct {
	source   stats.ObservationSource
	polygons region.PolygonSource
	engine   *stats.Engine
	cellSize float64
	events   Events
	logger   *logger.Logger
}

// NewService creates an analysis service. polygons may be nil when no
// custom polygon directory is configured.
func NewService(source stats.ObservationSource, polygons region.PolygonSource, cellSize float64, log *logger.Logger) *Service {
	if cellSize == 0 {
		cellSize = grid.DefaultCellSize
	}
	return &Service{
		source:   source,
		polygons: polygons,
		engine:   stats.NewEngine(source, log),
		cellSize: cellSize,
		logger:   log.Named("analysis"),
	}
}

// SetEvents registers the receiver of finished reports
func (s *Service) SetEvents(events Events) {
	s.events = events
}

// Engine returns the statistics engine used by the service
func (s *Service) Engine() *stats.Engine {
	return s.engine
}

// Prepare validates q and resolves its region filter
func (s *Service) Prepare(q stats.Query) (*stats.Plan, region.Filter, error) {
	plan, err := q.Validate()
	if err != nil {
		return nil, nil, err
	}
	filter, err := plan.Filter(s.polygons)
	if err != nil {
		return nil, nil, err
	}
	return plan, filter, nil
}

// Run validates q, maps the first requested date and computes the counts
// and flights tables over every requested date
func (s *Service) Run(ctx context.Context, q stats.Query) (*Report, error) {
	start := time.Now()

	plan, filter, err := s.Prepare(q)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Processing analysis",
		logger.String("dates", plan.DateDescription),
		logger.String("region", plan.RegionDescription),
		logger.Strings("bins", plan.Classification.Labels()))

	mapDate := plan.Dates[0]
	points, cells, err := s.Map(ctx, mapDate, filter, plan.Classification)
	if err != nil {
		return nil, err
	}

	counts, flights, err := s.engine.ComputeAll(ctx, plan.Dates, filter, plan.Classification)
	if err != nil {
		return nil, err
	}

	r := &Report{
		RunID:             uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		DateDescription:   plan.DateDescription,
		RegionDescription: plan.RegionDescription,
		MapDate:           mapDate.Format(stats.DateLayout),
		CellSize:          s.cellSize,
		Bins:              plan.Classification.Bins(),
		Points:            points,
		Cells:             cells,
		Counts:            counts,
		Flights:           flights,
		Duration:          time.Since(start),
	}

	s.logger.Info("Analysis complete",
		logger.String("run_id", r.RunID),
		logger.Int("points", len(points)),
		logger.Int("cells", len(cells)),
		logger.Duration("duration", r.Duration))

	if s.events != nil {
		s.events.ReportReady(r)
	}
	return r, nil
}

// Map returns the classified raw points and averaged grid cells of one day
// within filter
func (s *Service) Map(ctx context.Context, date time.Time, filter region.Filter, cls *bins.Classification) (points, cells []report.ClassifiedPoint, err error) {
	obs, err := s.load(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	obs = region.Apply(filter, obs)

	averaged, err := grid.Aggregate(obs, s.cellSize)
	if err != nil {
		return nil, nil, err
	}
	return report.ClassifyPoints(obs, cls), report.ClassifyCells(averaged, cls), nil
}

// Points returns the classified raw points of one day within filter
func (s *Service) Points(ctx context.Context, date time.Time, filter region.Filter, cls *bins.Classification) ([]report.ClassifiedPoint, error) {
	obs, err := s.load(ctx, date)
	if err != nil {
		return nil, err
	}
	return report.ClassifyPoints(region.Apply(filter, obs), cls), nil
}

func (s *Service) load(ctx context.Context, date time.Time) ([]adsb.Observation, error) {
	obs, err := s.source.Load(ctx, date)
	if err != nil {
		if apperr.IsNotFound(err) {
			s.logger.Warn("No data for map date, using an empty set",
				logger.String("date", date.Format(stats.DateLayout)))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", date.Format(stats.DateLayout), err)
	}
	return obs, nil
}
