package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

var ErrNotFound = errors.New("not found")

// DB represents a database connection
type DB struct {
	*sql.DB
}

// New opens the database at path and creates the schema
func New(path string) (*DB, error) {
	log.Debug().Str("path", path).Msg("Opening database")
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.initialize(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates the necessary tables if they don't exist
func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS scans (
			scan_id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			scanned_at DATETIME NOT NULL,
			total_pages INTEGER NOT NULL,
			recommendations INTEGER NOT NULL,
			desktop_bytes INTEGER NOT NULL,
			analysis TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ignored (
			project TEXT NOT NULL,
			rec_id TEXT NOT NULL,
			PRIMARY KEY (project, rec_id)
		);
		CREATE TABLE IF NOT EXISTS cms_estimates (
			project TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			avg_bytes INTEGER NOT NULL,
			item_count INTEGER NOT NULL,
			PRIMARY KEY (project, collection_id)
		);
		CREATE TABLE IF NOT EXISTS optimized (
			project TEXT NOT NULL,
			rec_id TEXT NOT NULL,
			source_url TEXT,
			format TEXT,
			width INTEGER,
			height INTEGER,
			original_size INTEGER,
			optimized_size INTEGER,
			has_transparency BOOLEAN,
			saved_as TEXT,
			created_at DATETIME,
			PRIMARY KEY (project, rec_id)
		);
		CREATE INDEX IF NOT EXISTS idx_scans_project ON scans(project, scanned_at);
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
	`)
	return err
}

// GetSetting returns a stored setting value
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	return value, err
}

// SetSetting stores a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Settings returns every stored setting
func (db *DB) Settings() (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ScanSummary is one row of scan history
type ScanSummary struct {
	ScanID          string
	ScannedAt       time.Time
	TotalPages      int
	Recommendations int
	DesktopBytes    int64
}

// SaveScan stores a completed analysis
func (db *DB) SaveScan(project string, analysis *models.ProjectAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	_, err = db.Exec(`
		INSERT OR REPLACE INTO scans (scan_id, project, scanned_at, total_pages, recommendations, desktop_bytes, analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		analysis.ScanID,
		project,
		analysis.ScanTimestamp.UTC(),
		analysis.TotalPages,
		len(analysis.AllRecommendations),
		analysis.OverallBreakpoints[models.BreakpointDesktop].TotalBytes,
		string(data),
	)
	return err
}

// LatestScan returns the most recent analysis of a project
func (db *DB) LatestScan(project string) (*models.ProjectAnalysis, error) {
	var data string
	err := db.QueryRow(`
		SELECT analysis FROM scans
		WHERE project = ?
		ORDER BY scanned_at DESC, rowid DESC
		LIMIT 1
	`, project).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no scan for project %s: %w", project, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var analysis models.ProjectAnalysis
	if err := json.Unmarshal([]byte(data), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

// ListScans returns up to limit scans of a project, newest first
func (db *DB) ListScans(project string, limit int) ([]ScanSummary, error) {
	rows, err := db.Query(`
		SELECT scan_id, scanned_at, total_pages, recommendations, desktop_bytes
		FROM scans
		WHERE project = ?
		ORDER BY scanned_at DESC, rowid DESC
		LIMIT ?
	`, project, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []ScanSummary
	for rows.Next() {
		var s ScanSummary
		if err := rows.Scan(&s.ScanID, &s.ScannedAt, &s.TotalPages, &s.Recommendations, &s.DesktopBytes); err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// IgnoredIDs returns the ignored recommendation ids of a project
func (db *DB) IgnoredIDs(project string) ([]string, error) {
	rows, err := db.Query(`SELECT rec_id FROM ignored WHERE project = ? ORDER BY rec_id`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ignore marks a recommendation as ignored
func (db *DB) Ignore(project, recID string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO ignored (project, rec_id) VALUES (?, ?)`, project, recID)
	return err
}

// Restore removes a recommendation from the ignored set
func (db *DB) Restore(project, recID string) error {
	res, err := db.Exec(`DELETE FROM ignored WHERE project = ? AND rec_id = ?`, project, recID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recommendation %s is not ignored: %w", recID, ErrNotFound)
	}
	return nil
}

// ReplaceIgnored replaces the ignored set of a project in a single transaction
func (db *DB) ReplaceIgnored(project string, ids []string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ignored WHERE project = ?`, project); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO ignored (project, rec_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(project, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetCMSEstimate stores or replaces a manual CMS estimate
func (db *DB) SetCMSEstimate(project string, est models.ManualCMSEstimate) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO cms_estimates (project, collection_id, avg_bytes, item_count)
		VALUES (?, ?, ?, ?)
	`, project, est.CollectionID, est.AverageBytesPerItem, est.ItemCount)
	return err
}

// CMSEstimates returns the manual CMS estimates of a project
func (db *DB) CMSEstimates(project string) ([]models.ManualCMSEstimate, error) {
	rows, err := db.Query(`
		SELECT collection_id, avg_bytes, item_count
		FROM cms_estimates
		WHERE project = ?
		ORDER BY collection_id
	`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ManualCMSEstimate
	for rows.Next() {
		var est models.ManualCMSEstimate
		if err := rows.Scan(&est.CollectionID, &est.AverageBytesPerItem, &est.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, est)
	}
	return out, rows.Err()
}

// RemoveCMSEstimate deletes a manual CMS estimate
func (db *DB) RemoveCMSEstimate(project, collectionID string) error {
	res, err := db.Exec(`DELETE FROM cms_estimates WHERE project = ? AND collection_id = ?`, project, collectionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cms estimate %s: %w", collectionID, ErrNotFound)
	}
	return nil
}

// SaveOptimized records the result of an optimize action
func (db *DB) SaveOptimized(project string, o *models.OptimizedAsset) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO optimized (project, rec_id, source_url, format, width, height,
			original_size, optimized_size, has_transparency, saved_as, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		project,
		o.RecommendationID,
		o.SourceURL,
		o.Format,
		o.Width,
		o.Height,
		o.OriginalSize,
		o.OptimizedSize,
		o.HasTransparency,
		o.SavedAs,
		time.Now().UTC(),
	)
	return err
}

// OptimizedAssets returns the optimize results of a project
func (db *DB) OptimizedAssets(project string) ([]models.OptimizedAsset, error) {
	rows, err := db.Query(`
		SELECT rec_id, source_url, format, width, height, original_size, optimized_size, has_transparency, saved_as
		FROM optimized
		WHERE project = ?
		ORDER BY created_at, rec_id
	`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OptimizedAsset
	for rows.Next() {
		var o models.OptimizedAsset
		err := rows.Scan(&o.RecommendationID, &o.SourceURL, &o.Format, &o.Width, &o.Height,
			&o.OriginalSize, &o.OptimizedSize, &o.HasTransparency, &o.SavedAs)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
