package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagen/popcornguide/internal/models"
)

// Postgres implements Store using PostgreSQL. Settings live in a single row
// of the settings table (see migrations/).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Load returns the settings row, or zero settings when it does not exist yet.
func (p *Postgres) Load(ctx context.Context) (*models.Settings, error) {
	var (
		s       models.Settings
		payload string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT playlist_url, guide_url, favourite_keys FROM settings WHERE id = 1`,
	).Scan(&s.PlaylistURL, &s.GuideURL, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	keys, err := decodeFavourites(payload)
	if err != nil {
		return &s, fmt.Errorf("Load: %w", err)
	}
	s.Favourites = keys
	return &s, nil
}

// Save upserts the settings row.
func (p *Postgres) Save(ctx context.Context, s *models.Settings) error {
	payload, err := models.EncodeKeys(s.Favourites)
	if err != nil {
		return fmt.Errorf("Save: encode favourites: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO settings (id, playlist_url, guide_url, favourite_keys, updated_at)
		 VALUES (1, $1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   playlist_url = EXCLUDED.playlist_url, guide_url = EXCLUDED.guide_url,
		   favourite_keys = EXCLUDED.favourite_keys, updated_at = NOW()`,
		s.PlaylistURL, s.GuideURL, payload,
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}
