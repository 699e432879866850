// Package sqlite is a pure-Go, persistent backing for the store.Store
// contract, grounded in the pack's fiddeb-otlp_cardinality_checker
// internal/storage/sqlite/store.go: modernc.org/sqlite (no cgo), WAL
// pragmas for concurrent writers, schema created on connect.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	doc_key TEXT PRIMARY KEY,
	blob_id TEXT NOT NULL,
	repo TEXT NOT NULL,
	commit_hash TEXT NOT NULL,
	path TEXT NOT NULL,
	url_template TEXT
);
CREATE INDEX IF NOT EXISTS idx_meta_blob ON meta(blob_id);

CREATE TABLE IF NOT EXISTS hashes (
	blob_id TEXT PRIMARY KEY,
	sketch_bytes TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS hashtables (
	band_index INTEGER NOT NULL,
	band_value TEXT NOT NULL,
	blob_id TEXT NOT NULL,
	PRIMARY KEY (band_index, band_value, blob_id)
);
CREATE INDEX IF NOT EXISTS idx_hashtables_bucket ON hashtables(band_index, band_value);
`

// Store is a sqlite-backed store.Store.
type Store struct {
	db          *sql.DB
	docFreqPath string
}

// Open connects to (and, if needed, creates) a sqlite database at path,
// a sibling to the DocFreq JSON document at docFreqPath.
func Open(path, docFreqPath string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one *DB

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, docFreqPath: docFreqPath}, nil
}

func (s *Store) PutMeta(ctx context.Context, m types.Meta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (doc_key, blob_id, repo, commit_hash, path, url_template)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_key) DO UPDATE SET
			blob_id=excluded.blob_id, repo=excluded.repo,
			commit_hash=excluded.commit_hash, path=excluded.path,
			url_template=excluded.url_template`,
		string(m.Key()), string(m.Blob), m.Repo, m.Commit, m.Path, m.URLTemplate)
	return err
}

func (s *Store) MetaByBlob(ctx context.Context, blob types.BlobID) ([]types.Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT blob_id, repo, commit_hash, path, url_template FROM meta WHERE blob_id = ?`,
		string(blob))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeta(rows)
}

func (s *Store) ScanMeta(ctx context.Context, fn func(types.Meta) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_id, repo, commit_hash, path, url_template FROM meta`)
	if err != nil {
		return err
	}
	defer rows.Close()
	out, err := scanMeta(rows)
	if err != nil {
		return err
	}
	for _, m := range out {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func scanMeta(rows *sql.Rows) ([]types.Meta, error) {
	var out []types.Meta
	for rows.Next() {
		var m types.Meta
		var blob, urlTemplate sql.NullString
		if err := rows.Scan(&blob, &m.Repo, &m.Commit, &m.Path, &urlTemplate); err != nil {
			return nil, err
		}
		m.Blob = types.BlobID(blob.String)
		m.URLTemplate = urlTemplate.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) PutSketch(ctx context.Context, blob types.BlobID, sk minhash.Sketch) error {
	if sk.IsEmpty() {
		return nil
	}
	data, err := json.Marshal(sk)
	if err != nil {
		return fmt.Errorf("marshal sketch: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO hashes (blob_id, sketch_bytes) VALUES (?, ?)
		ON CONFLICT(blob_id) DO UPDATE SET sketch_bytes=excluded.sketch_bytes`,
		string(blob), string(data))
	return err
}

func (s *Store) Sketch(ctx context.Context, blob types.BlobID) (minhash.Sketch, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT sketch_bytes FROM hashes WHERE blob_id = ?`, string(blob)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var sk minhash.Sketch
	if err := json.Unmarshal([]byte(data), &sk); err != nil {
		return nil, false, fmt.Errorf("unmarshal sketch: %w", err)
	}
	return sk, true, nil
}

func (s *Store) PutBands(ctx context.Context, blob types.BlobID, bands []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for band, value := range bands {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hashtables (band_index, band_value, blob_id) VALUES (?, ?, ?)
			ON CONFLICT(band_index, band_value, blob_id) DO NOTHING`,
			band, value, string(blob)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) BlobsInBand(ctx context.Context, band int, value string, cap int) ([]types.BlobID, int, error) {
	query := `SELECT blob_id FROM hashtables WHERE band_index = ? AND band_value = ?`
	args := []any{band, value}
	if cap > 0 {
		query += ` LIMIT ?`
		args = append(args, cap+1)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var blobs []types.BlobID
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, 0, err
		}
		blobs = append(blobs, types.BlobID(b))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if cap > 0 && len(blobs) > cap {
		total, err := s.bucketSize(ctx, band, value)
		if err != nil {
			return nil, 0, err
		}
		return blobs[:cap], total - cap, nil
	}
	return blobs, 0, nil
}

func (s *Store) bucketSize(ctx context.Context, band int, value string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hashtables WHERE band_index = ? AND band_value = ?`,
		band, value).Scan(&n)
	return n, err
}

func (s *Store) ScanBuckets(ctx context.Context, fn func(store.HashtableRow, []types.BlobID) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT band_index, band_value FROM hashtables
		GROUP BY band_index, band_value
		HAVING COUNT(DISTINCT blob_id) >= 2`)
	if err != nil {
		return err
	}
	var buckets []store.HashtableRow
	for rows.Next() {
		var r store.HashtableRow
		if err := rows.Scan(&r.Band, &r.Value); err != nil {
			rows.Close()
			return err
		}
		buckets = append(buckets, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, bucket := range buckets {
		blobs, _, err := s.BlobsInBand(ctx, bucket.Band, bucket.Value, 0)
		if err != nil {
			return err
		}
		if err := fn(bucket, blobs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) HasData(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meta LIMIT 1`).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DocFreqPath() string {
	return s.docFreqPath
}

func (s *Store) Close() error {
	return s.db.Close()
}
