package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/library"
)

var _ library.RecordStore = (*Store)(nil)

type libraryRow struct {
	LibraryID    string         `db:"library_id"`
	Name         string         `db:"name"`
	Version      string         `db:"version"`
	Manifest     []byte         `db:"manifest"`
	Enabled      bool           `db:"enabled"`
	InstalledAt  time.Time      `db:"installed_at"`
	InstalledBy  string         `db:"installed_by"`
	LastLoadedAt sql.NullTime   `db:"last_loaded_at"`
	LoadErrors   sql.NullString `db:"load_errors"`
}

func (r libraryRow) toRecord() (library.Record, error) {
	var manifest library.Manifest
	if err := json.Unmarshal(r.Manifest, &manifest); err != nil {
		return library.Record{}, flowerr.Wrap(flowerr.Fatal, err, "decode library manifest")
	}
	rec := library.Record{
		LibraryID:   r.LibraryID,
		Name:        r.Name,
		Version:     r.Version,
		Manifest:    manifest,
		Enabled:     r.Enabled,
		InstalledAt: r.InstalledAt,
		InstalledBy: r.InstalledBy,
		LoadErrors:  r.LoadErrors.String,
	}
	if r.LastLoadedAt.Valid {
		rec.LastLoadedAt = r.LastLoadedAt.Time
	}
	return rec, nil
}

// EnabledLibraries implements library.RecordStore: the libraries LoadAllLibraries
// is eligible to load. No ctx parameter, matching the manager's synchronous
// bulk-load call; the control store is assumed local and fast.
func (s *Store) EnabledLibraries() ([]library.Record, error) {
	var rows []libraryRow
	err := s.control.Select(&rows, `
		SELECT library_id, name, version, manifest, enabled, installed_at, installed_by, last_loaded_at, load_errors
		FROM node_libraries WHERE enabled = true
	`)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "list enabled libraries")
	}
	out := make([]library.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkLoaded implements library.RecordStore.
func (s *Store) MarkLoaded(libraryID string, loadedAt time.Time) error {
	_, err := s.control.Exec(`
		UPDATE node_libraries SET last_loaded_at = $2, load_errors = NULL WHERE library_id = $1
	`, libraryID, loadedAt)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "mark library loaded")
	}
	return nil
}

// MarkLoadFailed implements library.RecordStore.
func (s *Store) MarkLoadFailed(libraryID string, reason string) error {
	_, err := s.control.Exec(`UPDATE node_libraries SET load_errors = $2 WHERE library_id = $1`, libraryID, reason)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "mark library load failed")
	}
	return nil
}

// InstallLibrary records a newly discovered library on disk, disabled by
// default until an operator enables it.
func (s *Store) InstallLibrary(ctx context.Context, m library.Manifest, installedBy string) error {
	manifest, err := json.Marshal(m)
	if err != nil {
		return flowerr.Wrap(flowerr.Validation, err, "encode library manifest")
	}
	_, err = s.control.ExecContext(ctx, `
		INSERT INTO node_libraries (library_id, name, version, manifest, enabled, installed_at, installed_by)
		VALUES ($1, $2, $3, $4, false, now(), $5)
		ON CONFLICT (library_id) DO UPDATE SET name = EXCLUDED.name, version = EXCLUDED.version, manifest = EXCLUDED.manifest
	`, m.LibraryID, m.Name, m.Version, manifest, installedBy)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "install library")
	}
	return nil
}

// SetLibraryEnabled flips a library record's enabled flag.
func (s *Store) SetLibraryEnabled(ctx context.Context, libraryID string, enabled bool) error {
	res, err := s.control.ExecContext(ctx, `UPDATE node_libraries SET enabled = $2 WHERE library_id = $1`, libraryID, enabled)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "set library enabled")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowerr.Newf(flowerr.NotFound, "library %q not found", libraryID)
	}
	return nil
}

// ListLibraries returns every library record, enabled or not.
func (s *Store) ListLibraries(ctx context.Context) ([]library.Record, error) {
	var rows []libraryRow
	err := s.control.SelectContext(ctx, &rows, `
		SELECT library_id, name, version, manifest, enabled, installed_at, installed_by, last_loaded_at, load_errors
		FROM node_libraries
	`)
	if err != nil {
		return nil, flowerr.Wrap(flowerr.Transient, err, "list libraries")
	}
	out := make([]library.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteLibrary removes a library record.
func (s *Store) DeleteLibrary(ctx context.Context, libraryID string) error {
	_, err := s.control.ExecContext(ctx, `DELETE FROM node_libraries WHERE library_id = $1`, libraryID)
	if err != nil {
		return flowerr.Wrap(flowerr.Transient, err, "delete library")
	}
	return nil
}
