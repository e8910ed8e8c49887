// jamctl harvests ADS-B snapshots and computes GNSS jamming statistics
// from the command line, using the same configuration as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/config"
	"github.com/yegors/gnss-jamming/internal/harvest"
	"github.com/yegors/gnss-jamming/internal/region"
	"github.com/yegors/gnss-jamming/internal/report"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/internal/storage/sqlite"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

var (
	configPath string
	logLevel   string
	outputFile string

	// Query flags shared by stats, grid and points
	input stats.Input

	mode        string
	statsFormat string
	gridFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "jamctl",
	Short: "Harvest ADS-B snapshots and compute GNSS jamming statistics",
	Long: `jamctl downloads historical ADS-B snapshots into the per-day store and
derives navigation integrity statistics from them.

Examples:
  jamctl harvest --start 2024-01-01 --end 2024-01-03
  jamctl stats --start 2024-01-01 --end 2024-01-07 --country Finland --mode flights
  jamctl grid --series 2024-01-01 --custom baltic --edges "0, 4, 7, 11"
  jamctl points --start 2024-01-01 --world -o points.geojson`,
	SilenceUsage: true,
}

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List the days present in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(false)
		if err != nil {
			return err
		}
		dates, err := env.store.Dates()
		if err != nil {
			return fmt.Errorf("failed to list dates: %w", err)
		}
		for _, d := range dates {
			fmt.Fprintln(cmd.OutOrStdout(), d.Format(stats.DateLayout))
		}
		return nil
	},
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the selectable countries and custom polygons",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if env.countries != nil {
			for _, name := range env.countries.Names() {
				fmt.Fprintf(out, "country\t%s\n", name)
			}
		}
		if env.polygons != nil {
			names, err := env.polygons.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintf(out, "custom\t%s\n", name)
			}
		}
		return nil
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Download the sampled snapshots of the given days",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}

		req := harvest.Request{Start: input.Start, End: input.End, Series: input.Series}
		dates, desc, err := req.Dates()
		if err != nil {
			return err
		}

		h, err := harvest.NewHarvester(harvest.Options{
			BaseURL:                 env.cfg.Harvest.BaseURL,
			SamplingIntervalMinutes: env.cfg.Harvest.SamplingIntervalMinutes,
			RequestTimeout:          time.Duration(env.cfg.Harvest.RequestTimeoutSecs) * time.Second,
			UserAgent:               env.cfg.Harvest.UserAgent,
		}, env.tagger(), env.store, env.log)
		if err != nil {
			return err
		}
		h.SetEvents(progressPrinter{out: cmd.ErrOrStderr()})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env.log.Info("Harvesting", logger.String("dates", desc))
		_, err = h.Harvest(ctx, dates)
		return err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute per-day bin counts or flight counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		svc := env.analysis()

		plan, filter, err := prepare(env, svc)
		if err != nil {
			return err
		}

		modes := []stats.Mode{stats.ModeCounts, stats.ModeFlights}
		if mode != "both" {
			m, err := stats.ParseMode(mode)
			if err != nil {
				return err
			}
			modes = []stats.Mode{m}
		}

		counts, flights, err := svc.Engine().ComputeAll(cmd.Context(), plan.Dates, filter, plan.Classification)
		if err != nil {
			return err
		}

		return withOutput(cmd, func(w io.Writer) error {
			for _, m := range modes {
				table := counts
				if m == stats.ModeFlights {
					table = flights
				}
				switch statsFormat {
				case "csv":
					if err := report.WriteCSV(w, table); err != nil {
						return err
					}
				case "json":
					if err := writeJSON(w, map[string]any{
						"date_description":   plan.DateDescription,
						"region_description": plan.RegionDescription,
						"columns":            table.Columns(),
						"table":              table,
					}); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unknown format %q, expected csv or json", statsFormat)
				}
			}
			return nil
		})
	},
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Average the first requested day onto the grid and classify the cells",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		svc := env.analysis()

		plan, filter, err := prepare(env, svc)
		if err != nil {
			return err
		}

		_, cells, err := svc.Map(cmd.Context(), plan.Dates[0], filter, plan.Classification)
		if err != nil {
			return err
		}

		return withOutput(cmd, func(w io.Writer) error {
			if gridFormat == "geojson" {
				return writeJSON(w, report.GeoJSON(cells))
			}
			return writeJSON(w, map[string]any{
				"date":               plan.Dates[0].Format(stats.DateLayout),
				"region_description": plan.RegionDescription,
				"cell_size":          env.cfg.Analysis.CellSizeDeg,
				"bins":               plan.Classification.Bins(),
				"cells":              cells,
			})
		})
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Export the classified raw points of the first requested day as GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			return err
		}
		svc := env.analysis()

		plan, filter, err := prepare(env, svc)
		if err != nil {
			return err
		}

		points, err := svc.Points(cmd.Context(), plan.Dates[0], filter, plan.Classification)
		if err != nil {
			return err
		}
		return withOutput(cmd, func(w io.Writer) error {
			return writeJSON(w, report.GeoJSON(points))
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (default: configs/config.toml or config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{harvestCmd, statsCmd, gridCmd, pointsCmd} {
		cmd.Flags().StringVar(&input.Start, "start", "", "first day (YYYY-MM-DD or MM/DD/YYYY)")
		cmd.Flags().StringVar(&input.End, "end", "", "last day of the range")
		cmd.Flags().StringSliceVar(&input.Series, "series", nil, "explicit list of days instead of a range")
	}

	for _, cmd := range []*cobra.Command{statsCmd, gridCmd, pointsCmd} {
		cmd.Flags().BoolVar(&input.World, "world", false, "use the whole world")
		cmd.Flags().StringVar(&input.Country, "country", "", "restrict to a country")
		cmd.Flags().StringVar(&input.Custom, "custom", "", "restrict to a custom polygon")
		cmd.Flags().StringVar(&input.Edges, "edges", "", "bin edges, e.g. \"0, 5, 10, inf\" (default from configuration)")
		cmd.Flags().StringSliceVar(&input.Colors, "colors", nil, "one hex color per bin")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	}

	statsCmd.Flags().StringVar(&mode, "mode", "both", "counts, flights or both")
	statsCmd.Flags().StringVar(&statsFormat, "format", "csv", "csv or json")
	gridCmd.Flags().StringVar(&gridFormat, "format", "json", "json or geojson")

	rootCmd.AddCommand(datesCmd, regionsCmd, harvestCmd, statsCmd, gridCmd, pointsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the components built from the configuration
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	store     *sqlite.ObservationStorage
	countries *region.CountryIndex
	polygons  *region.PolygonDir
}

func setup(withRegions bool) (*app, error) {
	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console"})
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewObservationStorage(cfg.Storage.SQLiteBasePath, cfg.Storage.FilePrefix, log)
	if err != nil {
		return nil, err
	}

	e := &app{cfg: cfg, log: log, store: store}
	if !withRegions {
		return e, nil
	}

	if path := cfg.Maps.CountriesShapefile; path != "" {
		if e.countries, err = region.LoadCountries(path, cfg.Maps.CountryNameField, log); err != nil {
			log.Warn("Country borders unavailable", logger.String("path", path), logger.Error(err))
		}
	}
	if cfg.Maps.CustomPolygonsDir != "" {
		e.polygons = region.NewPolygonDir(cfg.Maps.CustomPolygonsDir, log)
	}
	return e, nil
}

// tagger returns the country index as a Tagger, or nil when none loaded
func (e *app) tagger() harvest.Tagger {
	if e.countries == nil {
		return nil
	}
	return e.countries
}

func (e *app) analysis() *analysis.Service {
	var polygons region.PolygonSource
	if e.polygons != nil {
		polygons = e.polygons
	}
	return analysis.NewService(e.store, polygons, e.cfg.Analysis.CellSizeDeg, e.log)
}

// prepare parses the query flags, falling back to the configured bins
func prepare(e *app, svc *analysis.Service) (*stats.Plan, region.Filter, error) {
	in := input
	if in.Edges == "" {
		in.Edges = e.cfg.Analysis.DefaultBinEdges
		if len(in.Colors) == 0 {
			in.Colors = e.cfg.Analysis.DefaultBinColors
		}
	}

	q, err := in.Query()
	if err != nil {
		return nil, nil, err
	}
	return svc.Prepare(q)
}

func withOutput(cmd *cobra.Command, write func(io.Writer) error) error {
	if outputFile == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter reports harvest progress on the terminal
type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) HarvestProgress(pr harvest.Progress) {
	if pr.Error != "" {
		fmt.Fprintf(p.out, "%s [%d/%d] %s failed: %s\n", pr.Date, pr.Done, pr.Total, pr.File, pr.Error)
		return
	}
	fmt.Fprintf(p.out, "%s [%d/%d] %s: %d observations\n", pr.Date, pr.Done, pr.Total, pr.File, pr.Observations)
}

func (p progressPrinter) HarvestComplete(s harvest.Summary) {
	fmt.Fprintf(p.out, "Harvested %d snapshots with %d observations in %s (%d failed)\n",
		s.Snapshots, s.Observations, s.Duration.Round(time.Second), s.Failed)
}
