package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vulpo-bot/vulpo/pkg/sites"
)

// Config key names, shared with the interactive bot that writes them.
const (
	GroupConfigAdd          = "group_add"
	UserConfigSiteSortOrder = "site-sort-order"
)

// Store wraps the relational database: the perceptual-hash cache plus chat
// and user configuration written by the interactive bot.
type Store struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// CachedHash returns the perceptual hash previously recorded for a
// file-unique-id, or nil when the file has not been hashed before.
func (s *Store) CachedHash(ctx context.Context, fileUniqueID string) (*int64, error) {
	var hash int64
	err := s.pool.QueryRow(ctx,
		`SELECT hash FROM file_id_cache WHERE file_id = $1`,
		fileUniqueID,
	).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up cached hash: %w", err)
	}
	return &hash, nil
}

// SaveHash records the hash computed for a file-unique-id. Re-inserting the
// same file is a no-op.
func (s *Store) SaveHash(ctx context.Context, fileUniqueID string, hash int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO file_id_cache (file_id, hash) VALUES ($1, $2)
		 ON CONFLICT (file_id) DO NOTHING`,
		fileUniqueID, hash,
	)
	if err != nil {
		return fmt.Errorf("save hash: %w", err)
	}
	return nil
}

// GroupConfigBool returns a boolean group setting, false when unset.
func (s *Store) GroupConfigBool(ctx context.Context, chatID int64, name string) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM group_config WHERE chat_id = $1 AND name = $2`,
		chatID, name,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up group config %q: %w", name, err)
	}

	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("decode group config %q: %w", name, err)
	}
	return value, nil
}

// UserSiteOrder returns the user's preferred site ordering, or nil when the
// user never configured one. Unknown site names are dropped.
func (s *Store) UserSiteOrder(ctx context.Context, userID int64) ([]sites.Site, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM user_config WHERE user_id = $1 AND name = $2`,
		userID, UserConfigSiteSortOrder,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up user site order: %w", err)
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("decode user site order: %w", err)
	}
	return sites.ParseList(names), nil
}
