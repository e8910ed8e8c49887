package region

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// PolygonSource loads named custom polygons
type PolygonSource interface {
	LoadPolygon(name string) (geom.Polygonal, error)
}

// PolygonDir serves custom polygons stored as <dir>/<name>.shp
type PolygonDir struct {
	dir    string
	logger *logger.Logger
}

// NewPolygonDir creates a polygon source over dir
func NewPolygonDir(dir string, log *logger.Logger) *PolygonDir {
	return &PolygonDir{
		dir:    dir,
		logger: log.Named("polygons"),
	}
}

// Names lists the polygons available in the directory
func (d *PolygonDir) Names() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read polygon directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".shp") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

// LoadPolygon reads every polygon in <name>.shp into one multipolygon
func (d *PolygonDir) LoadPolygon(name string) (geom.Polygonal, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, apperr.Config("custom polygon", "%q is not a valid polygon name", name)
	}

	path := filepath.Join(d.dir, name+".shp")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperr.NotFound("custom polygon", name)
	}

	shape, err := decodePolygons(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load polygon %s: %w", name, err)
	}

	d.logger.Debug("Loaded custom polygon",
		logger.String("name", name),
		logger.Int("polygons", len(shape)))

	return shape, nil
}

// decodePolygons reads all polygonal rows of a shapefile. When onRow is set
// it is called with each row's polygon and attribute fields.
func decodePolygons(path string, onRow func(geom.Polygonal, map[string]string), fields ...string) (geom.MultiPolygon, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer dec.Close()

	var all geom.MultiPolygon
	for {
		g, attrs, more := dec.DecodeRowFields(fields...)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			continue
		}
		all = append(all, poly.Polygons()...)
		if onRow != nil {
			onRow(poly, attrs)
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("failed to decode shapefile: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("shapefile %s contains no polygons", path)
	}
	return all, nil
}
