package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/config"
	"github.com/yegors/gnss-jamming/internal/harvest"
	"github.com/yegors/gnss-jamming/internal/report"
	"github.com/yegors/gnss-jamming/internal/stats"
	"github.com/yegors/gnss-jamming/internal/websocket"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

const maxBodyBytes = 1 << 20

// DayStore lists the days with stored observations
type DayStore interface {
	Dates() ([]time.Time, error)
}

// NameLister lists the names of selectable regions
type NameLister interface {
	Names() ([]string, error)
}

// Handler contains the API handlers
type Handler struct {
	ctx       context.Context
	store     DayStore
	analysis  *analysis.Service
	harvester *harvest.Harvester
	countries []string
	polygons  NameLister
	config    *config.Config
	wsServer  *websocket.Server
	logger    *logger.Logger
}

// NewHandler creates a new API handler. ctx bounds background harvests
// started through the API. harvester and polygons may be nil.
func NewHandler(ctx context.Context, store DayStore, analysisService *analysis.Service, harvester *harvest.Harvester, countries []string, polygons NameLister, cfg *config.Config, wsServer *websocket.Server, logger *logger.Logger) *Handler {
	return &Handler{
		ctx:       ctx,
		store:     store,
		analysis:  analysisService,
		harvester: harvester,
		countries: countries,
		polygons:  polygons,
		config:    cfg,
		wsServer:  wsServer,
		logger:    logger.Named("api-handler"),
	}
}

// Health reports that the server is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}
	if h.harvester != nil {
		response["harvest_running"] = h.harvester.Busy()
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetDates returns the days present in the store
func (h *Handler) GetDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.store.Dates()
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to list dates: %w", err))
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(stats.DateLayout)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"dates": out})
}

// GetRegions returns the selectable countries and custom polygons
func (h *Handler) GetRegions(w http.ResponseWriter, r *http.Request) {
	custom := []string{}
	if h.polygons != nil {
		names, err := h.polygons.Names()
		if err != nil {
			h.writeError(w, fmt.Errorf("failed to list custom polygons: %w", err))
			return
		}
		custom = names
	}

	countries := h.countries
	if countries == nil {
		countries = []string{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"countries":       countries,
		"custom_polygons": custom,
	})
}

// GetPublicConfig returns the analysis defaults offered by dashboards
func (h *Handler) GetPublicConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"cell_size_deg":      h.config.Analysis.CellSizeDeg,
		"default_bin_edges":  h.config.Analysis.DefaultBinEdges,
		"default_bin_colors": h.config.Analysis.DefaultBinColors,
		"harvest_enabled":    h.harvester != nil,
		"sampling_interval":  h.config.Harvest.SamplingIntervalMinutes,
	})
}

// RunAnalysis runs a full analysis and returns its report
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	rep, err := h.analysis.Run(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rep)
}

// GetStats returns one statistics table as JSON or CSV
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	mode := stats.ModeCounts
	if m := r.URL.Query().Get("mode"); m != "" {
		parsed, err := stats.ParseMode(m)
		if err != nil {
			h.writeError(w, err)
			return
		}
		mode = parsed
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		h.writeError(w, apperr.Config("format", "%q is not one of json or csv", format))
		return
	}

	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	plan, filter, err := h.analysis.Prepare(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	table, err := h.analysis.Engine().Compute(r.Context(), plan.Dates, filter, plan.Classification, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if format == "json" {
		WriteJSON(w, http.StatusOK, map[string]any{
			"date_description":   plan.DateDescription,
			"region_description": plan.RegionDescription,
			"columns":            table.Columns(),
			"table":              table,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("nic-%s.csv", mode)))
	w.WriteHeader(http.StatusOK)
	if err := report.WriteCSV(w, table); err != nil {
		h.logger.Error("Failed to write CSV", logger.Error(err))
	}
}

// GetGrid returns the averaged, classified grid cells of the first
// requested date
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	q, ok := h.decodeQuery(w, r)
	if !ok {
		return
	}

	plan, filter, err := h.analysis.Prepare(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	date := plan.Dates[0]
	_, cells, err := h.analysis.Map(r.Context(), date, filter, plan.Classification)
	if err != nil {
		h.writeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"date":               date.Format(stats.DateLayout),
		"region_description": plan.RegionDescription,
		"cell_size":          h.config.Analysis.CellSizeDeg,
		"bins":               plan.Classification.Bins(),
		"cells":              cells,
	})
}

// GetPoints returns the classified raw points of one date as GeoJSON. The
// region and bins come from the query string and default to the whole
// world and the configured bins.
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	in := stats.Input{
		Start:   chi.URLParam(r, "date"),
		Country: params.Get("country"),
		Custom:  params.Get("custom"),
		Edges:   params.Get("edges"),
	}
	in.World = in.Country == "" && in.Custom == ""
	if in.Edges == "" {
		in.Edges = h.config.Analysis.DefaultBinEdges
		in.Colors = h.config.Analysis.DefaultBinColors
	} else if colors := params.Get("colors"); colors != "" {
		in.Colors = strings.Split(colors, ",")
	}

	q, err := in.Query()
	if err != nil {
		h.writeError(w, err)
		return
	}
	plan, filter, err := h.analysis.Prepare(q)
	if err != nil {
		h.writeError(w, err)
		return
	}

	points, err := h.analysis.Points(r.Context(), plan.Dates[0], filter, plan.Classification)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := report.GeoJSON(points).MarshalJSON()
	if err != nil {
		h.writeError(w, fmt.Errorf("failed to encode GeoJSON: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StartHarvest starts a harvest in the background. Progress is pushed over
// the websocket.
func (h *Handler) StartHarvest(w http.ResponseWriter, r *http.Request) {
	if h.harvester == nil {
		http.Error(w, "Harvesting is not configured", http.StatusServiceUnavailable)
		return
	}

	var req harvest.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	dates, desc, err := req.Dates()
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.harvester.Busy() {
		WriteJSON(w, http.StatusConflict, map[string]string{"error": harvest.ErrBusy.Error()})
		return
	}

	go func() {
		if _, err := h.harvester.Harvest(h.ctx, dates); err != nil {
			h.logger.Error("Harvest started through the API failed",
				logger.String("dates", desc),
				logger.Error(err))
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"dates":  desc,
	})
}

// decodeQuery reads a stats.Input body and parses it
func (h *Handler) decodeQuery(w http.ResponseWriter, r *http.Request) (stats.Query, bool) {
	var in stats.Input
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return stats.Query{}, false
	}

	q, err := in.Query()
	if err != nil {
		h.writeError(w, err)
		return stats.Query{}, false
	}
	return q, true
}

// writeError maps domain errors to status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.IsConfig(err):
		status = http.StatusBadRequest
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", logger.Error(err))
		message = "internal error"
	}
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
