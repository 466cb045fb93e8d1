package store

import (
	"context"
	"fmt"

	"filescribe/internal/watch"
)

// SaveFolder inserts or updates a watch-folder config.
func (s *Store) SaveFolder(ctx context.Context, cfg watch.FolderConfig) error {
	_, err := s.execWithRetry(ctx, `INSERT INTO watch_folders (id, path, enabled, recursive, auto_process, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			enabled = excluded.enabled,
			recursive = excluded.recursive,
			auto_process = excluded.auto_process`,
		cfg.ID,
		cfg.Path,
		boolToInt(cfg.Enabled),
		boolToInt(cfg.Recursive),
		boolToInt(cfg.AutoProcess),
		formatTime(cfg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save watch folder %s: %w", cfg.ID, err)
	}
	return nil
}

// DeleteFolder removes a watch-folder config.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM watch_folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete watch folder %s: %w", id, err)
	}
	return nil
}

// LoadFolders returns every persisted watch-folder config in creation order.
func (s *Store) LoadFolders(ctx context.Context) ([]watch.FolderConfig, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, path, enabled, recursive, auto_process, created_at FROM watch_folders ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("query watch folders: %w", err)
	}
	defer rows.Close()

	var folders []watch.FolderConfig
	for rows.Next() {
		var (
			cfg                             watch.FolderConfig
			enabled, recursive, autoProcess int
			createdAt                       string
		)
		if err := rows.Scan(&cfg.ID, &cfg.Path, &enabled, &recursive, &autoProcess, &createdAt); err != nil {
			return nil, fmt.Errorf("scan watch folder: %w", err)
		}
		cfg.Enabled = enabled != 0
		cfg.Recursive = recursive != 0
		cfg.AutoProcess = autoProcess != 0
		if cfg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		folders = append(folders, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch folders: %w", err)
	}
	return folders, nil
}
