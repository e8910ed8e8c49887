package websocket

import (
	"github.com/yegors/gnss-jamming/internal/analysis"
	"github.com/yegors/gnss-jamming/internal/harvest"
)

// Notifier forwards harvest and analysis events to every dashboard
type Notifier struct {
	server *Server
}

// NewNotifier creates a notifier broadcasting through server
func NewNotifier(server *Server) *Notifier {
	return &Notifier{server: server}
}

// HarvestProgress announces one processed snapshot
func (n *Notifier) HarvestProgress(p harvest.Progress) {
	n.server.Broadcast(&Message{
		Type: MessageTypeHarvestProgress,
		Data: map[string]any{"progress": p},
	})
}

// HarvestComplete announces the end of a harvest run
func (n *Notifier) HarvestComplete(s harvest.Summary) {
	n.server.Broadcast(&Message{
		Type: MessageTypeHarvestComplete,
		Data: map[string]any{"summary": s},
	})
}

// ReportReady announces a finished analysis. Only the headline is sent;
// the requester already holds the full report.
func (n *Notifier) ReportReady(r *analysis.Report) {
	n.server.Broadcast(&Message{
		Type: MessageTypeReportReady,
		Data: map[string]any{
			"run_id":             r.RunID,
			"date_description":   r.DateDescription,
			"region_description": r.RegionDescription,
			"map_date":           r.MapDate,
			"points":             len(r.Points),
			"cells":              len(r.Cells),
		},
	})
}
