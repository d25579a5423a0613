package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// sql.Open is lazy; force the file open so backend fallback can
	// happen at startup instead of on the first write.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Sites (reference data, no sync state)
	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		client TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	-- Surveys (root of the upload dependency tree)
	CREATE TABLE IF NOT EXISTS surveys (
		id TEXT PRIMARY KEY,
		site_id TEXT NOT NULL REFERENCES sites(id),
		trade TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		surveyor_id TEXT NOT NULL,
		gps_lng REAL,
		gps_lat REAL,
		server_id TEXT,
		synced INTEGER NOT NULL DEFAULT 0,
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		last_sync_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_surveys_site_id ON surveys(site_id);
	CREATE INDEX IF NOT EXISTS idx_surveys_synced ON surveys(synced);

	-- Asset inspections (child of survey, parent of photos)
	CREATE TABLE IF NOT EXISTS asset_inspections (
		id TEXT PRIMARY KEY,
		survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
		asset_id TEXT NOT NULL,
		condition_rating INTEGER NOT NULL,
		overall_condition TEXT NOT NULL DEFAULT '',
		quantity REAL NOT NULL DEFAULT 0,
		remarks TEXT NOT NULL DEFAULT '',
		gps_lng REAL,
		gps_lat REAL,
		server_id TEXT,
		synced INTEGER NOT NULL DEFAULT 0,
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		last_sync_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inspections_survey_id ON asset_inspections(survey_id);
	CREATE INDEX IF NOT EXISTS idx_inspections_synced ON asset_inspections(synced);

	-- Photos (child of asset inspection)
	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		asset_inspection_id TEXT NOT NULL REFERENCES asset_inspections(id) ON DELETE CASCADE,
		survey_id TEXT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		taken_at DATETIME,
		gps_lng REAL,
		gps_lat REAL,
		server_id TEXT,
		synced INTEGER NOT NULL DEFAULT 0,
		sync_attempts INTEGER NOT NULL DEFAULT 0,
		last_sync_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_photos_inspection_id ON photos(asset_inspection_id);
	CREATE INDEX IF NOT EXISTS idx_photos_survey_id ON photos(survey_id);
	CREATE INDEX IF NOT EXISTS idx_photos_synced ON photos(synced);
	`

	_, err := db.Exec(schema)
	return err
}

// gpsPoint converts nullable lng/lat columns to an orb.Point
func gpsPoint(lng, lat sql.NullFloat64) *orb.Point {
	if !lng.Valid || !lat.Valid {
		return nil
	}
	p := orb.Point{lng.Float64, lat.Float64}
	return &p
}

// gpsArgs converts an optional orb.Point to lng/lat bind values
func gpsArgs(p *orb.Point) (interface{}, interface{}) {
	if p == nil {
		return nil, nil
	}
	return p.Lon(), p.Lat()
}

// nullString converts an optional string to a bind value
func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// strPtr converts a nullable column to an optional string
func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
