package corpus

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotIngested indicates the store holds no corpus snapshot yet.
var ErrNotIngested = errors.New("store holds no ingested corpus")

// Store persists a corpus and its row embeddings in SQLite so that serving
// processes can start without re-reading the source file or re-embedding.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) a SQLite-backed corpus store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// One writer at a time keeps ingest/serve from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS corpus_columns (
			pos  INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS corpus_rows (
			idx  INTEGER NOT NULL,
			pos  INTEGER NOT NULL,
			cell TEXT NOT NULL,
			PRIMARY KEY (idx, pos)
		);
		CREATE TABLE IF NOT EXISTS row_embeddings (
			idx    INTEGER PRIMARY KEY,
			vector BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS store_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	return nil
}

// SaveCorpus replaces any previous snapshot with the given corpus and its
// embeddings. vectors must be index-aligned with the corpus rows.
func (s *Store) SaveCorpus(ctx context.Context, c *Corpus, model string, vectors [][]float32) error {
	if len(vectors) != c.Len() {
		return fmt.Errorf("save corpus: %d vectors for %d rows", len(vectors), c.Len())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"corpus_columns", "corpus_rows", "row_embeddings", "store_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for pos, name := range c.Columns() {
		if _, err := tx.ExecContext(ctx, "INSERT INTO corpus_columns (pos, name) VALUES (?, ?)", pos, name); err != nil {
			return fmt.Errorf("insert column %q: %w", name, err)
		}
	}

	for idx, row := range c.Rows() {
		for pos, col := range c.Columns() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO corpus_rows (idx, pos, cell) VALUES (?, ?, ?)",
				idx, pos, row.Get(col),
			); err != nil {
				return fmt.Errorf("insert row %d: %w", idx, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO row_embeddings (idx, vector) VALUES (?, ?)",
			idx, encodeVector(vectors[idx]),
		); err != nil {
			return fmt.Errorf("insert embedding %d: %w", idx, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO store_meta (key, value) VALUES ('embedding_model', ?)", model,
	); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadCorpus restores the persisted corpus and its embeddings. Returns
// ErrNotIngested when the store is empty.
func (s *Store) LoadCorpus(ctx context.Context) (*Corpus, string, [][]float32, error) {
	columns, err := s.loadColumns(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	if len(columns) == 0 {
		return nil, "", nil, ErrNotIngested
	}

	records, err := s.loadRecords(ctx, len(columns))
	if err != nil {
		return nil, "", nil, err
	}

	c, err := New(columns, records)
	if err != nil {
		return nil, "", nil, fmt.Errorf("rebuild corpus: %w", err)
	}

	vectors, err := s.loadVectors(ctx, c.Len())
	if err != nil {
		return nil, "", nil, err
	}

	var model string
	err = s.db.QueryRowContext(ctx,
		"SELECT value FROM store_meta WHERE key = 'embedding_model'",
	).Scan(&model)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil, fmt.Errorf("load meta: %w", err)
	}

	return c, model, vectors, nil
}

func (s *Store) loadColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM corpus_columns ORDER BY pos")
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (s *Store) loadRecords(ctx context.Context, width int) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT idx, pos, cell FROM corpus_rows ORDER BY idx, pos")
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		var idx, pos int
		var cell string
		if err := rows.Scan(&idx, &pos, &cell); err != nil {
			return nil, fmt.Errorf("scan row cell: %w", err)
		}
		for idx >= len(records) {
			records = append(records, make([]string, width))
		}
		if pos < 0 || pos >= width {
			return nil, fmt.Errorf("row %d: cell position %d out of range", idx, pos)
		}
		records[idx][pos] = cell
	}
	return records, rows.Err()
}

func (s *Store) loadVectors(ctx context.Context, count int) ([][]float32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT idx, vector FROM row_embeddings ORDER BY idx")
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	vectors := make([][]float32, count)
	for rows.Next() {
		var idx int
		var blob []byte
		if err := rows.Scan(&idx, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if idx < 0 || idx >= count {
			return nil, fmt.Errorf("embedding index %d out of range", idx)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", idx, err)
		}
		vectors[idx] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("row %d has no embedding", i)
		}
	}
	return vectors, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
