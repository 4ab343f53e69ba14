package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/neural"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps saved populations in one SQLite table.
type SQLiteStore struct {
	path   string
	layers []int
	clk    clock.Clock

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string, layers []int, clk clock.Clock) *SQLiteStore {
	return &SQLiteStore{path: path, layers: append([]int(nil), layers...), clk: clk}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, generation int, genomes []*neural.Genome) (Entry, error) {
	db, err := s.getDB()
	if err != nil {
		return Entry{}, err
	}
	payload, err := Encode(genomes)
	if err != nil {
		return Entry{}, err
	}
	entry, _ := ParseEntryName(EntryName(generation, s.clk.Now()))

	_, err = db.ExecContext(ctx, `
		INSERT INTO populations (name, generation, saved_at, genomes, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			genomes = excluded.genomes,
			payload = excluded.payload
	`, entry.Name, entry.Generation, entry.SavedAt.UnixMilli(), len(genomes), payload)
	if err != nil {
		return Entry{}, fmt.Errorf("save population: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name, generation, saved_at FROM populations ORDER BY saved_at, generation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.Name, &e.Generation, &ms); err != nil {
			return nil, err
		}
		e.SavedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, name string) ([]*neural.Genome, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM populations WHERE name = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	genomes, err := Decode(payload, s.layers)
	if err != nil {
		return nil, fmt.Errorf("decode population %s: %w", name, err)
	}
	return genomes, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS populations (
			name TEXT PRIMARY KEY,
			generation INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			genomes INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
