package vecstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

const schema = `
CREATE TABLE IF NOT EXISTS image_vectors (
    image_id  INTEGER PRIMARY KEY,
    embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
    run_id     TEXT PRIMARY KEY,
    dim        INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS snapshot_captions (
    run_id     TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    caption_id INTEGER NOT NULL,
    image_id   INTEGER NOT NULL,
    mean       BLOB NOT NULL,
    variance   BLOB NOT NULL,
    PRIMARY KEY(run_id, seq)
);
CREATE TABLE IF NOT EXISTS snapshot_images (
    run_id   TEXT NOT NULL,
    seq      INTEGER NOT NULL,
    image_id INTEGER NOT NULL,
    vector   BLOB NOT NULL,
    PRIMARY KEY(run_id, seq)
);
`

// Store keeps image vectors and encoded candidate snapshots in SQLite
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a store. For file-based databases, pass a path
// like "./img2vec.sqlite"; ":memory:" gives a private in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vecstore: open %s: %w", dsn, err)
	}
	// one connection: an in-memory database is per connection
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and ensures the schema exists
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("vecstore: db is nil")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("vecstore: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// PutImageVectors inserts or replaces image vectors by id
func (s *Store) PutImageVectors(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids, %d vectors", crossmodal.ErrShapeMismatch, len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO image_vectors(image_id, embedding) VALUES(?, ?)
ON CONFLICT(image_id) DO UPDATE SET embedding = excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, EncodeEmbedding(vectors[i])); err != nil {
			return fmt.Errorf("vecstore: put image %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// ImageVector returns the vector stored for one image
func (s *Store) ImageVector(ctx context.Context, id int64) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM image_vectors WHERE image_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vecstore: image %d: %w", id, crossmodal.ErrUnknownID)
	}
	if err != nil {
		return nil, err
	}
	return DecodeEmbedding(blob)
}

// ImageVectors loads every stored image vector keyed by image id
func (s *Store) ImageVectors(ctx context.Context) (map[int64][]float32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image_id, embedding FROM image_vectors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]float32)
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("vecstore: image %d: %w", id, err)
		}
		out[id] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
