// Package bins classifies integrity values into ordered half-open ranges.
package bins

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yegors/gnss-jamming/internal/apperr"
)

const (
	// MaxBins is the number of distinct colors a chart palette can show
	MaxBins = 10

	// DefaultColor is used for bins without a chosen color
	DefaultColor = "#FFFFFF"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Bin describes one interval (Lower, Upper] of a Classification
type Bin struct {
	Index int    `json:"index"`
	Lower string `json:"lower"`
	Upper string `json:"upper"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Classification partitions values into the intervals (e[i], e[i+1]].
// It is immutable once built and safe to share.
type Classification struct {
	edges  []float64
	labels []string
	colors []string
}

// New validates edges and colors and builds a Classification. Empty color
// entries fall back to DefaultColor.
func New(edges []float64, colors []string) (*Classification, error) {
	if len(edges) == 0 {
		return nil, apperr.Config("bins", "no edges given")
	}
	n := len(edges) - 1
	if n != len(colors) {
		return nil, apperr.Config("bins", "%d bins but %d colors; each bin needs exactly one color", n, len(colors))
	}
	if n < 1 {
		return nil, apperr.Config("bins", "at least two edges are required")
	}
	if n > MaxBins {
		return nil, apperr.Config("bins", "%d bins requested, at most %d are allowed", n, MaxBins)
	}
	for i, e := range edges {
		if math.IsNaN(e) {
			return nil, apperr.Config("bins", "edge %d is not a number", i)
		}
	}
	for i := 0; i < n; i++ {
		if edges[i] >= edges[i+1] {
			return nil, apperr.Config("bins", "edge %s must be lower than the next edge %s", FormatEdge(edges[i]), FormatEdge(edges[i+1]))
		}
	}

	c := &Classification{
		edges:  append([]float64(nil), edges...),
		labels: make([]string, n),
		colors: make([]string, n),
	}
	for i := 0; i < n; i++ {
		color := strings.TrimSpace(colors[i])
		if color == "" {
			color = DefaultColor
		}
		if !hexColor.MatchString(color) {
			return nil, apperr.Config("bins", "color %q is not a hex color", colors[i])
		}
		c.colors[i] = color
		c.labels[i] = "NIC = (" + FormatEdge(edges[i]) + ", " + FormatEdge(edges[i+1]) + "]"
	}
	return c, nil
}

// ParseEdges reads a comma separated edge list such as "0, 5, 10, inf"
func ParseEdges(text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Config("bins", "no edges given")
	}
	parts := strings.Split(text, ",")
	edges := make([]float64, 0, len(parts))
	for _, part := range parts {
		e, err := ParseEdge(part)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// ParseEdge reads a single numeric edge or an infinity token
func ParseEdge(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, apperr.Config("bins", "edge %q is neither a number nor inf", s)
	}
	return v, nil
}

// FormatEdge renders an edge the way labels show it
func FormatEdge(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

// Classify returns the index of the bin holding v. Values at or below the
// lowest edge, above the highest edge, or NaN are unclassified.
func (c *Classification) Classify(v float64) (int, bool) {
	n := len(c.labels)
	i := sort.Search(n, func(i int) bool { return v <= c.edges[i+1] })
	if i == n || !(v > c.edges[i]) {
		return 0, false
	}
	return i, true
}

// Len returns the number of bins
func (c *Classification) Len() int {
	return len(c.labels)
}

// Label returns the label of bin i
func (c *Classification) Label(i int) string {
	return c.labels[i]
}

// Color returns the color of bin i
func (c *Classification) Color(i int) string {
	return c.colors[i]
}

// Labels returns a copy of all bin labels in order
func (c *Classification) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Colors returns a copy of all bin colors in order
func (c *Classification) Colors() []string {
	return append([]string(nil), c.colors...)
}

// Edges returns a copy of the edges
func (c *Classification) Edges() []float64 {
	return append([]float64(nil), c.edges...)
}

// Bins describes every bin for presentation
func (c *Classification) Bins() []Bin {
	out := make([]Bin, len(c.labels))
	for i := range c.labels {
		out[i] = Bin{
			Index: i,
			Lower: FormatEdge(c.edges[i]),
			Upper: FormatEdge(c.edges[i+1]),
			Label: c.labels[i],
			Color: c.colors[i],
		}
	}
	return out
}
