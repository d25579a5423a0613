package repository

import (
	"context"
	"database/sql"

	"github.com/surveysync/agent/internal/models"
)

// SiteRepository handles site persistence on SQLite
type SiteRepository struct {
	db *sql.DB
}

// NewSiteRepository creates a new SiteRepository
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// GetByID retrieves a site by its ID
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*models.Site, error) {
	query := `SELECT id, name, location, client, created_at FROM sites WHERE id = ?`

	var site models.Site
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&site.ID,
		&site.Name,
		&site.Location,
		&site.Client,
		&site.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &site, nil
}

// GetAll retrieves all sites ordered by name
func (r *SiteRepository) GetAll(ctx context.Context) ([]*models.Site, error) {
	query := `SELECT id, name, location, client, created_at FROM sites ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(
			&site.ID,
			&site.Name,
			&site.Location,
			&site.Client,
			&site.CreatedAt,
		); err != nil {
			return nil, err
		}
		sites = append(sites, &site)
	}

	if sites == nil {
		sites = []*models.Site{}
	}

	return sites, rows.Err()
}

// Add inserts a new site
func (r *SiteRepository) Add(ctx context.Context, site *models.Site) error {
	query := `INSERT INTO sites (id, name, location, client, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.Location,
		site.Client,
		site.CreatedAt,
	)

	return err
}

// Delete removes a site by ID
func (r *SiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}
