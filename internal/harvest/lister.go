package harvest

import (
	"context"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

// Snapshot file names are the UTC time of the snapshot, e.g. "013000Z.json.gz"
var snapshotFile = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})Z\.json\.gz$`)

// SnapshotName strips the extension from a snapshot file name
func SnapshotName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".json.gz")
}

// OnSamplingInterval reports whether the snapshot file name falls on a
// multiple of interval minutes. Seconds count as fractions of a minute, so
// with a 1.5 minute interval "000130Z.json.gz" is kept.
func OnSamplingInterval(file string, interval float64) bool {
	if interval <= 0 || math.IsNaN(interval) || math.IsInf(interval, 0) {
		return false
	}
	m := snapshotFile.FindStringSubmatch(path.Base(file))
	if m == nil {
		return false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])

	total := float64(hour*60+minute) + float64(second)/60
	return math.Mod(total, interval) == 0
}

// Lister collects the snapshot links of a day listing page
type Lister struct {
	userAgent string
	timeout   time.Duration
	logger    *logger.Logger
}

// NewLister creates a listing scraper
func NewLister(userAgent string, timeout time.Duration, log *logger.Logger) *Lister {
	return &Lister{
		userAgent: userAgent,
		timeout:   timeout,
		logger:    log.Named("lister"),
	}
}

// List returns the absolute URLs of every link on the page at pageURL, in
// page order and without duplicates
func (l *Lister) List(ctx context.Context, pageURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(l.userAgent))
	if l.timeout > 0 {
		c.SetRequestTimeout(l.timeout)
	}

	seen := make(map[string]struct{})
	var links []string
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", pageURL, err)
	}

	l.logger.Debug("Listed page",
		logger.String("url", pageURL),
		logger.Int("links", len(links)))

	return links, nil
}
