package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yegors/gnss-jamming/internal/adsb"
	"github.com/yegors/gnss-jamming/internal/apperr"
	"github.com/yegors/gnss-jamming/pkg/logger"
	_ "modernc.org/sqlite"
)

const dayLayout = "2006-01-02"

// SnapshotInfo describes one stored snapshot
type SnapshotInfo struct {
	Name          string    `json:"name"`
	FetchedAt     time.Time `json:"fetched_at"`
	AircraftCount int       `json:"aircraft_count"`
}

// ObservationStorage keeps one SQLite file per day. Every call opens the
// day's file, does its work and closes it again, so no handle outlives a
// single load or save.
type ObservationStorage struct {
	baseDir string
	prefix  string
	logger  *logger.Logger
}

// NewObservationStorage creates a store rooted at baseDir. Files are named
// <prefix>-YYYY-MM-DD.db.
func NewObservationStorage(baseDir, prefix string, log *logger.Logger) (*ObservationStorage, error) {
	storageLogger := log.Named("sqlite")

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", baseDir),
		logger.String("prefix", prefix))

	return &ObservationStorage{
		baseDir: baseDir,
		prefix:  prefix,
		logger:  storageLogger,
	}, nil
}

// PathFor returns the database file holding date
func (s *ObservationStorage) PathFor(date time.Time) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s-%s.db", s.prefix, date.Format(dayLayout)))
}

// openDay opens (and creates if needed) the database for date
func (s *ObservationStorage) openDay(date time.Time) (*sql.DB, error) {
	dbPath := s.PathFor(date)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := initDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			fetched_at TIMESTAMP NOT NULL,
			aircraft_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create snapshots table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id INTEGER NOT NULL,
			hex TEXT,
			flight TEXT NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			nic REAL NOT NULL,
			rc INTEGER,
			country TEXT,
			FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create observations table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_snapshot ON observations(snapshot_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on observations.snapshot_id: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_observations_country ON observations(country)`)
	if err != nil {
		return fmt.Errorf("failed to create index on observations.country: %w", err)
	}

	return nil
}

// SaveSnapshot stores the observations of one snapshot, replacing any
// snapshot previously saved under the same name
func (s *ObservationStorage) SaveSnapshot(ctx context.Context, date time.Time, info SnapshotInfo, obs []adsb.Observation) error {
	start := time.Now()

	db, err := s.openDay(date)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE snapshot_id IN (SELECT id FROM snapshots WHERE name = ?)`, info.Name); err != nil {
		return fmt.Errorf("failed to clear previous observations for %s: %w", info.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, info.Name); err != nil {
		return fmt.Errorf("failed to clear previous snapshot %s: %w", info.Name, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (name, fetched_at, aircraft_count) VALUES (?, ?, ?)`,
		info.Name, info.FetchedAt.UTC().Format(time.RFC3339), info.AircraftCount)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot %s: %w", info.Name, err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (snapshot_id, hex, flight, lat, lon, nic, rc, country)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, snapshotID, nullableString(o.Hex), o.Flight, o.Lat, o.Lon, o.NIC, o.RC, nullableString(o.Country)); err != nil {
			return fmt.Errorf("failed to insert observation for %s: %w", o.Flight, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot %s: %w", info.Name, err)
	}

	s.logger.Debug("Saved snapshot",
		logger.String("date", date.Format(dayLayout)),
		logger.String("snapshot", info.Name),
		logger.Int("observations", len(obs)),
		logger.Duration("duration", time.Since(start)))

	return nil
}

// Load returns every observation stored for date, ordered by snapshot.
// A day without a database file or without snapshots is a NotFoundError.
func (s *ObservationStorage) Load(ctx context.Context, date time.Time) ([]adsb.Observation, error) {
	start := time.Now()
	day := date.Format(dayLayout)

	if _, err := os.Stat(s.PathFor(date)); os.IsNotExist(err) {
		return nil, apperr.NotFound("observations", day)
	}

	db, err := s.openDay(date)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var snapshots int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&snapshots); err != nil {
		return nil, fmt.Errorf("failed to count snapshots: %w", err)
	}
	if snapshots == 0 {
		return nil, apperr.NotFound("observations", day)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT o.lat, o.lon, o.nic, o.rc, o.flight, o.hex, o.country
		FROM observations o
		JOIN snapshots s ON s.id = o.snapshot_id
		ORDER BY s.name, o.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []adsb.Observation
	for rows.Next() {
		var o adsb.Observation
		var rc sql.NullInt64
		var hex, country sql.NullString
		if err := rows.Scan(&o.Lat, &o.Lon, &o.NIC, &rc, &o.Flight, &hex, &country); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.RC = int(rc.Int64)
		o.Hex = hex.String
		o.Country = country.String
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}

	s.logger.Debug("Loaded observations",
		logger.String("date", day),
		logger.Int("snapshots", snapshots),
		logger.Int("observations", len(out)),
		logger.Duration("duration", time.Since(start)))

	return out, nil
}

// Snapshots lists the snapshots stored for date
func (s *ObservationStorage) Snapshots(ctx context.Context, date time.Time) ([]SnapshotInfo, error) {
	if _, err := os.Stat(s.PathFor(date)); os.IsNotExist(err) {
		return nil, apperr.NotFound("observations", date.Format(dayLayout))
	}

	db, err := s.openDay(date)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT name, fetched_at, aircraft_count FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		var fetchedAt string
		if err := rows.Scan(&info.Name, &fetchedAt, &info.AircraftCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fetched_at timestamp: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return out, nil
}

// Dates lists the days that have a database file, oldest first
func (s *ObservationStorage) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read database directory: %w", err)
	}

	prefix := s.prefix + "-"
	dates := []time.Time{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		d, err := time.Parse(dayLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".db"))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
