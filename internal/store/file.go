package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/voyagen/popcornguide/internal/models"
)

// fileSettings is the on-disk YAML layout. Favourites are kept as a JSON
// list of [name, category] pairs.
type fileSettings struct {
	PlaylistURL   string `yaml:"playlist_url"`
	GuideURL      string `yaml:"guide_url"`
	FavouriteKeys string `yaml:"favourite_channel_keys"`
}

// loadedSettings keeps favourites as a raw node; any kind other than a
// string scalar is corrupt favourites.
type loadedSettings struct {
	PlaylistURL   string    `yaml:"playlist_url"`
	GuideURL      string    `yaml:"guide_url"`
	FavouriteKeys yaml.Node `yaml:"favourite_channel_keys"`
}

// favouritesPayload returns the JSON payload held by node.
func favouritesPayload(node yaml.Node) (string, error) {
	switch {
	case node.Kind == 0:
		return "", nil
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return "", nil
	case node.Kind == yaml.ScalarNode:
		return node.Value, nil
	default:
		return "", errors.Join(ErrConfigCorrupt, fmt.Errorf("favourite_channel_keys at line %d is not a string", node.Line))
	}
}

// File implements Store on a YAML file.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store at path. The file is created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads the settings file. A missing file yields zero settings.
func (f *File) Load(_ context.Context) (*models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var raw loadedSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	s := &models.Settings{PlaylistURL: raw.PlaylistURL, GuideURL: raw.GuideURL}
	payload, err := favouritesPayload(raw.FavouriteKeys)
	if err != nil {
		return s, fmt.Errorf("settings %s: %w", f.path, err)
	}
	keys, err := decodeFavourites(payload)
	if err != nil {
		return s, fmt.Errorf("settings %s: %w", f.path, err)
	}
	s.Favourites = keys
	return s, nil
}

// Save writes the settings file atomically (temp file + rename).
func (f *File) Save(_ context.Context, s *models.Settings) error {
	payload, err := models.EncodeKeys(s.Favourites)
	if err != nil {
		return fmt.Errorf("encode favourites: %w", err)
	}
	data, err := yaml.Marshal(fileSettings{
		PlaylistURL:   s.PlaylistURL,
		GuideURL:      s.GuideURL,
		FavouriteKeys: payload,
	})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
