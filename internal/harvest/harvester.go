// Package harvest downloads sampled historical ADS-B snapshots, tags their
// observations with a country and stores them per day.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/internal/storage/sqlite"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// ErrBusy is returned when a harvest is requested while another one runs
var ErrBusy = errors.New("a harvest is already running")

// SnapshotStore persists the observations of one snapshot
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, date time.Time, info sqlite.SnapshotInfo, obs []adsb.Observation) error
}

// Tagger fills in the country of observations
type Tagger interface {
	Tag(obs []adsb.Observation)
}

// Events receives harvest progress
type Events interface {
	HarvestProgress(p Progress)
	HarvestComplete(s Summary)
}

// Progress describes one processed snapshot file
type Progress struct {
	Date         string `json:"date"`
	File         string `json:"file"`
	Done         int    `json:"done"`
	Total        int    `json:"total"`
	Observations int    `json:"observations"`
	Error        string `json:"error,omitempty"`
}

// Summary totals a harvest run
type Summary struct {
	Dates        []string      `json:"dates"`
	Snapshots    int           `json:"snapshots"`
	Observations int           `json:"observations"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
}

// Options configures a Harvester
type Options struct {
	BaseURL                 string
	SamplingIntervalMinutes float64
	RequestTimeout          time.Duration
	UserAgent               string
}

// Harvester downloads the sampled snapshots of whole days
type Harvester struct {
	baseURL  string
	interval float64
	lister   *Lister
	client   *adsb.Client
	tagger   Tagger
	store    SnapshotStore
	events   Events
	logger   *logger.Logger

	running sync.Mutex
}

// NewHarvester creates a harvester. tagger may be nil when no country
// borders are configured.
func NewHarvester(opts Options, tagger Tagger, store SnapshotStore, log *logger.Logger) (*Harvester, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, apperr.Config("harvest base URL", "must not be empty")
	}
	if !(opts.SamplingIntervalMinutes > 0) {
		return nil, apperr.Config("sampling interval", "must be a positive number of minutes, got %v", opts.SamplingIntervalMinutes)
	}

	return &Harvester{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		interval: opts.SamplingIntervalMinutes,
		lister:   NewLister(opts.UserAgent, opts.RequestTimeout, log),
		client:   adsb.NewClient(opts.RequestTimeout, opts.UserAgent, log),
		tagger:   tagger,
		store:    store,
		logger:   log.Named("harvest"),
	}, nil
}

// SetEvents registers the receiver of progress events
func (h *Harvester) SetEvents(events Events) {
	h.events = events
}

// Busy reports whether a harvest is running
func (h *Harvester) Busy() bool {
	if h.running.TryLock() {
		h.running.Unlock()
		return false
	}
	return true
}

// DayURL returns the listing page of date, e.g. <base>/2024/01/01/
func (h *Harvester) DayURL(date time.Time) string {
	return h.baseURL + date.UTC().Format("/2006/01/02/")
}

// Harvest downloads every date in turn. A day whose listing cannot be read
// is logged and skipped, as is a snapshot that fails to download. Only
// cancellation and store failures stop the run.
func (h *Harvester) Harvest(ctx context.Context, dates []time.Time) (Summary, error) {
	if !h.running.TryLock() {
		return Summary{}, ErrBusy
	}
	defer h.running.Unlock()

	start := time.Now()
	summary := Summary{Dates: make([]string, 0, len(dates))}

	h.logger.Info("Starting harvest",
		logger.Int("dates", len(dates)),
		logger.Float64("sampling_interval_minutes", h.interval))

	for _, date := range dates {
		date = stats.Day(date)
		summary.Dates = append(summary.Dates, date.Format(stats.DateLayout))
		if err := h.harvestDay(ctx, date, &summary); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	h.logger.Info("Harvest complete",
		logger.Int("snapshots", summary.Snapshots),
		logger.Int("observations", summary.Observations),
		logger.Int("failed", summary.Failed),
		logger.Duration("duration", summary.Duration))

	if h.events != nil {
		h.events.HarvestComplete(summary)
	}
	return summary, nil
}

func (h *Harvester) harvestDay(ctx context.Context, date time.Time, summary *Summary) error {
	day := date.Format(stats.DateLayout)
	pageURL := h.DayURL(date)

	links, err := h.lister.List(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warn("Skipping day without a readable listing",
			logger.String("date", day),
			logger.Error(err))
		summary.Failed++
		return nil
	}

	var files []string
	for _, link := range links {
		if OnSamplingInterval(link, h.interval) {
			files = append(files, link)
		}
	}

	h.logger.Info("Harvesting day",
		logger.String("date", day),
		logger.Int("listed", len(links)),
		logger.Int("sampled", len(files)))

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		progress := Progress{Date: day, File: SnapshotName(file), Done: i + 1, Total: len(files)}

		obs, info, err := h.fetch(ctx, file)
		switch {
		case err == nil:
			if err := h.store.SaveSnapshot(ctx, date, info, obs); err != nil {
				return fmt.Errorf("failed to store snapshot %s of %s: %w", info.Name, day, err)
			}
			summary.Snapshots++
			summary.Observations += len(obs)
			progress.Observations = len(obs)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			h.logger.Warn("Failed to harvest snapshot",
				logger.String("url", file),
				logger.Error(err))
			summary.Failed++
			progress.Error = err.Error()
		}

		if h.events != nil {
			h.events.HarvestProgress(progress)
		}
	}
	return nil
}

// fetch downloads one snapshot and tags its observations
func (h *Harvester) fetch(ctx context.Context, url string) ([]adsb.Observation, sqlite.SnapshotInfo, error) {
	snapshot, err := h.client.FetchSnapshot(ctx, url)
	if err != nil {
		return nil, sqlite.SnapshotInfo{}, err
	}

	obs := snapshot.Observations()
	if h.tagger != nil {
		h.tagger.Tag(obs)
	}

	info := sqlite.SnapshotInfo{
		Name:          SnapshotName(url),
		FetchedAt:     time.Now().UTC(),
		AircraftCount: len(snapshot.Aircraft),
	}
	return obs, info, nil
}

// Request is the textual form of the dates of a harvest
type Request struct {
	Start  string   `json:"start,omitempty"`
	End    string   `json:"end,omitempty"`
	Series []string `json:"series,omitempty"`
}

// Dates resolves the request with the same rules as a statistics query
func (r Request) Dates() ([]time.Time, string, error) {
	start, end, series, err := stats.ParseDateInputs(r.Start, r.End, r.Series)
	if err != nil {
		return nil, "", err
	}
	return stats.ResolveDates(start, end, series)
}
