package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/config"
	"github.com/yegors/gnss-jamming/internal/harvest"
	"github.com/yegors/gnss-jamming/internal/websocket"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// Router wires the API handlers, the websocket endpoint and the dashboard
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	static   http.Handler
	logger   *logger.Logger
}

// NewRouter creates the HTTP router
func NewRouter(ctx context.Context, store DayStore, analysisService *analysis.Service, harvester *harvest.Harvester, countries []string, polygons NameLister, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler:  NewHandler(ctx, store, analysisService, harvester, countries, polygons, cfg, wsServer, log),
		wsServer: wsServer,
		static:   NewStaticFileHandler(cfg.Server.StaticFilesDir, log),
		logger:   log.Named("http"),
	}
}

// Routes returns the root handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/config", h.GetPublicConfig)
		r.Get("/dates", h.GetDates)
		r.Get("/regions", h.GetRegions)
		r.Post("/analysis", h.RunAnalysis)
		r.Post("/stats", h.GetStats)
		r.Post("/grid", h.GetGrid)
		r.Get("/points/{date}", h.GetPoints)
		r.Post("/harvest", h.StartHarvest)
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	r.Handle("/*", rt.static)

	return r
}

// requestLogger logs every request once it has been served
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("Served request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Duration("duration", time.Since(start)))
	})
}
