// Package region restricts observations to the whole world, a country or a
// custom polygon, and tags positions with the country they fall in.
package region

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/yegors/gnss-jamming/internal/adsb"
)

// Filter selects the observations a query covers. It is one of WholeWorld,
// Country or CustomPolygon.
type Filter interface {
	// Describe returns a human readable name for the area
	Describe() string
	filter()
}

// WholeWorld keeps every observation
type WholeWorld struct{}

// Country keeps observations tagged with the named country at ingestion
type Country struct {
	Name string
}

// CustomPolygon keeps observations strictly inside Shape
type CustomPolygon struct {
	Name  string
	Shape geom.Polygonal
}

func (WholeWorld) Describe() string      { return "the whole world" }
func (c Country) Describe() string       { return c.Name }
func (c CustomPolygon) Describe() string { return c.Name }

func (WholeWorld) filter()    {}
func (Country) filter()       {}
func (CustomPolygon) filter() {}

// Apply returns the observations selected by f. The input slice is not
// modified; WholeWorld returns it unchanged.
func Apply(f Filter, obs []adsb.Observation) []adsb.Observation {
	switch f := f.(type) {
	case WholeWorld:
		return obs
	case Country:
		out := make([]adsb.Observation, 0, len(obs))
		for _, o := range obs {
			if o.Country == f.Name {
				out = append(out, o)
			}
		}
		return out
	case CustomPolygon:
		bounds := f.Shape.Bounds()
		out := make([]adsb.Observation, 0, len(obs))
		for _, o := range obs {
			p := geom.Point{X: o.Lon, Y: o.Lat}
			if !bounds.Overlaps(p.Bounds()) {
				continue
			}
			if Within(p, f.Shape) {
				out = append(out, o)
			}
		}
		return out
	default:
		panic(fmt.Sprintf("region: unhandled filter type %T", f))
	}
}

// Within reports whether p lies strictly inside shape. Points on an edge
// count as outside.
func Within(p geom.Point, shape geom.Polygonal) bool {
	return p.Within(shape) == geom.Inside
}
