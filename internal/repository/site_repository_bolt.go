package repository

import (
	"context"
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/surveysync/agent/internal/models"
)

// BoltSiteRepository handles site persistence on the key-value backend
type BoltSiteRepository struct {
	db *bolt.DB
}

// NewBoltSiteRepository creates a new BoltSiteRepository
func NewBoltSiteRepository(db *bolt.DB) *BoltSiteRepository {
	return &BoltSiteRepository{db: db}
}

// GetByID retrieves a site by its ID
func (r *BoltSiteRepository) GetByID(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	found, err := boltGet(r.db, bucketSites, id, &site)
	if err != nil || !found {
		return nil, err
	}
	return &site, nil
}

// GetAll retrieves all sites ordered by name
func (r *BoltSiteRepository) GetAll(ctx context.Context) ([]*models.Site, error) {
	sites := []*models.Site{}
	err := boltForEach(r.db, bucketSites, func(data []byte) error {
		var site models.Site
		if err := json.Unmarshal(data, &site); err != nil {
			return err
		}
		sites = append(sites, &site)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sites, func(i, j int) bool { return sites[i].Name < sites[j].Name })
	return sites, nil
}

// Add inserts a new site
func (r *BoltSiteRepository) Add(ctx context.Context, site *models.Site) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return boltPut(tx, bucketSites, site.ID, site)
	})
}

// Delete removes a site by ID
func (r *BoltSiteRepository) Delete(ctx context.Context, id string) (bool, error) {
	return boltDelete(r.db, bucketSites, id)
}
