package region

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// DefaultCountryField is the Natural Earth admin-0 attribute holding the
// country name
const DefaultCountryField = "ADMIN"

// CountryShape is a named country outline
type CountryShape struct {
	Name string
	geom.Polygonal
}

type indexedCountry struct {
	order int
	*CountryShape
}

// CountryIndex resolves positions to country names
type CountryIndex struct {
	tree  *rtree.Rtree
	names []string
}

// NewCountryIndex builds an index over the given outlines. When outlines
// overlap, the one listed first wins.
func NewCountryIndex(shapes []CountryShape) *CountryIndex {
	idx := &CountryIndex{tree: rtree.NewTree(25, 50)}
	seen := make(map[string]bool)
	for i := range shapes {
		idx.tree.Insert(&indexedCountry{order: i, CountryShape: &shapes[i]})
		if !seen[shapes[i].Name] {
			seen[shapes[i].Name] = true
			idx.names = append(idx.names, shapes[i].Name)
		}
	}
	sort.Strings(idx.names)
	return idx
}

// LoadCountries reads a country shapefile such as ne_10m_admin_0_countries.shp
func LoadCountries(path, nameField string, log *logger.Logger) (*CountryIndex, error) {
	if nameField == "" {
		nameField = DefaultCountryField
	}

	var shapes []CountryShape
	_, err := decodePolygons(path, func(poly geom.Polygonal, attrs map[string]string) {
		name := strings.TrimSpace(attrs[nameField])
		if name == "" {
			return
		}
		shapes = append(shapes, CountryShape{Name: name, Polygonal: poly})
	}, nameField)
	if err != nil {
		return nil, fmt.Errorf("failed to load countries: %w", err)
	}

	idx := NewCountryIndex(shapes)
	log.Named("countries").Info("Loaded country borders",
		logger.String("path", path),
		logger.Int("shapes", len(shapes)),
		logger.Int("countries", len(idx.names)))
	return idx, nil
}

// Resolve returns the country containing lat/lon, or "" over water and on
// borders
func (idx *CountryIndex) Resolve(lat, lon float64) string {
	p := geom.Point{X: lon, Y: lat}
	best := -1
	name := ""
	for _, item := range idx.tree.SearchIntersect(p.Bounds()) {
		c := item.(*indexedCountry)
		if best != -1 && c.order > best {
			continue
		}
		if Within(p, c.Polygonal) {
			best = c.order
			name = c.Name
		}
	}
	return name
}

// Tag sets the Country of every observation
func (idx *CountryIndex) Tag(obs []adsb.Observation) {
	for i := range obs {
		obs[i].Country = idx.Resolve(obs[i].Lat, obs[i].Lon)
	}
}

// Names returns the sorted country names in the index
func (idx *CountryIndex) Names() []string {
	return append([]string(nil), idx.names...)
}
