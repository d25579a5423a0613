package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Site is a facility location that surveys are carried out against.
// Sites are reference data: they are provisioned from the remote backend
// (or seeded locally) and carry no sync state of their own.
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Client    string    `json:"client"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSite creates a new Site with a client-generated identifier
func NewSite(name, location, client string) (*Site, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}

	return &Site{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Location:  strings.TrimSpace(location),
		Client:    strings.TrimSpace(client),
		CreatedAt: time.Now().UTC(),
	}, nil
}
