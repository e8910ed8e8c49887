package stats

import (
	"strings"
	"time"

	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/internal/bins"
	"github.com/yegors/gnss-jamming/internal/region"
)

// Query holds the user-selected parameters of a statistics run. Nothing in
// it is trusted until Validate succeeds.
type Query struct {
	Start   *time.Time
	End     *time.Time
	Series  []time.Time
	World   bool
	Country string
	Custom  string
	Edges   []float64
	Colors  []string
}

// Plan is a validated query
type Plan struct {
	Dates             []time.Time
	DateDescription   string
	RegionDescription string
	Classification    *bins.Classification

	world   bool
	country string
	custom  string
}

// Validate checks the dates, region selection and bins of q. Every
// problem is reported as a ConfigError before any data is touched.
func (q Query) Validate() (*Plan, error) {
	dates, dateDesc, err := ResolveDates(q.Start, q.End, q.Series)
	if err != nil {
		return nil, err
	}

	country := strings.TrimSpace(q.Country)
	custom := strings.TrimSpace(q.Custom)

	var regionDesc string
	switch {
	case q.World && (country != "" || custom != ""):
		return nil, apperr.Config("region", "the whole world cannot be combined with another region")
	case q.World:
		regionDesc = region.WholeWorld{}.Describe()
	case country == "" && custom == "":
		return nil, apperr.Config("region", "select the whole world, a country or a custom polygon")
	case country != "" && custom != "":
		return nil, apperr.Config("region", "select either a country or a custom polygon, not both")
	case country != "":
		regionDesc = country
	default:
		regionDesc = custom
	}

	cls, err := bins.New(q.Edges, q.Colors)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Dates:             dates,
		DateDescription:   dateDesc,
		RegionDescription: regionDesc,
		Classification:    cls,
		world:             q.World,
		country:           country,
		custom:            custom,
	}, nil
}

// Filter builds the region filter of the plan, loading a custom polygon
// from polygons when one was selected
func (p *Plan) Filter(polygons region.PolygonSource) (region.Filter, error) {
	switch {
	case p.world:
		return region.WholeWorld{}, nil
	case p.country != "":
		return region.Country{Name: p.country}, nil
	}

	if polygons == nil {
		return nil, apperr.Config("custom polygon", "no polygon source configured")
	}
	shape, err := polygons.LoadPolygon(p.custom)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Config("custom polygon", "unknown polygon %q", p.custom)
		}
		return nil, err
	}
	return region.CustomPolygon{Name: p.custom, Shape: shape}, nil
}

// Input is the textual form of a Query as submitted by forms, the CLI and
// JSON requests
type Input struct {
	Start   string   `json:"start,omitempty"`
	End     string   `json:"end,omitempty"`
	Series  []string `json:"series,omitempty"`
	World   bool     `json:"world"`
	Country string   `json:"country,omitempty"`
	Custom  string   `json:"custom,omitempty"`
	Edges   string   `json:"edges"`            // e.g. "0, 5, 10, inf"
	Colors  []string `json:"colors,omitempty"` // one hex color per bin
}

// Query parses the textual fields. An empty color list means every bin
// uses bins.DefaultColor.
func (in Input) Query() (Query, error) {
	var q Query

	start, end, series, err := ParseDateInputs(in.Start, in.End, in.Series)
	if err != nil {
		return Query{}, err
	}
	q.Start, q.End, q.Series = start, end, series

	edges, err := bins.ParseEdges(in.Edges)
	if err != nil {
		return Query{}, err
	}
	q.Edges = edges

	q.Colors = in.Colors
	if len(q.Colors) == 0 && len(edges) > 1 {
		q.Colors = make([]string, len(edges)-1)
	}

	q.World = in.World
	q.Country = in.Country
	q.Custom = in.Custom
	return q, nil
}

// ParseDateInputs parses the optional start, end and series fields of a
// form. Blank fields are treated as absent.
func ParseDateInputs(start, end string, series []string) (*time.Time, *time.Time, []time.Time, error) {
	parse := func(s string) (*time.Time, error) {
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}

	from, err := parse(start)
	if err != nil {
		return nil, nil, nil, err
	}
	to, err := parse(end)
	if err != nil {
		return nil, nil, nil, err
	}

	var dates []time.Time
	for _, s := range series {
		d, err := parse(s)
		if err != nil {
			return nil, nil, nil, err
		}
		if d != nil {
			dates = append(dates, *d)
		}
	}
	return from, to, dates, nil
}
