package store

import (
	"context"
	"errors"

	"github.com/voyagen/popcornguide/internal/models"
)

// ErrConfigCorrupt is returned alongside usable settings when the stored
// favourite key payload cannot be decoded. The settings then carry an empty
// favourite set.
var ErrConfigCorrupt = errors.New("stored favourites are corrupt")

// Store persists the user settings: playlist URL, guide URL and favourite keys.
type Store interface {
	// Load returns the stored settings, or zero settings when nothing was saved yet.
	// When the error matches ErrConfigCorrupt the returned settings are still valid.
	Load(ctx context.Context) (*models.Settings, error)
	// Save replaces the stored settings.
	Save(ctx context.Context, s *models.Settings) error
}

// decodeFavourites turns a stored payload into keys, reporting ErrConfigCorrupt
// on failure.
func decodeFavourites(payload string) ([]models.FavouriteKey, error) {
	keys, err := models.DecodeKeys(payload)
	if err != nil {
		return nil, errors.Join(ErrConfigCorrupt, err)
	}
	return keys, nil
}
