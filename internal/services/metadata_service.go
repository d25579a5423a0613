package services

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/surveysync/agent/internal/models"
	"github.com/surveysync/agent/internal/observability"
)

// MetadataService enriches photo records with what the image file itself
// knows: size on disk, EXIF capture time, embedded GPS fix
type MetadataService struct{}

// NewMetadataService creates a new MetadataService
func NewMetadataService() *MetadataService {
	return &MetadataService{}
}

// Enrich fills the photo's FileSize, TakenAt and GPS from the file at
// photo.FilePath. A missing file is an error; unreadable or absent EXIF
// is not, since many field cameras strip it.
func (s *MetadataService) Enrich(photo *models.Photo) error {
	info, err := os.Stat(photo.FilePath)
	if err != nil {
		return err
	}
	photo.FileSize = info.Size()

	file, err := os.Open(photo.FilePath)
	if err != nil {
		return err
	}
	defer file.Close()

	meta, err := exif.Decode(file)
	if err != nil {
		observability.Debugf("No EXIF metadata in %s: %v", photo.FilePath, err)
		return nil
	}

	if taken, err := meta.DateTime(); err == nil {
		t := taken.UTC()
		photo.TakenAt = &t
	}

	if lat, lng, err := meta.LatLong(); err == nil {
		point := orb.Point{lng, lat}
		photo.GPS = &point
	}

	return nil
}
