package state

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps the cursor and processed set in a local SQLite database.
// Commit durability stands in for the file store's rename-over-temp.
type SQLiteStore struct {
	db      *sql.DB
	maxIDs  int
	cursor  int64
	members map[int64]struct{}
}

func NewSQLiteStore(path string, maxIDs int) (*SQLiteStore, error) {
	slog.Info("Initializing state storage", "path", path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:      db,
		maxIDs:  maxIDs,
		members: make(map[int64]struct{}),
	}

	if err := s.loadSnapshot(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("State storage initialized", "cursor", s.cursor, "processed", len(s.members))
	return s, nil
}

func runMigrations(db *sql.DB) error {
	slog.Debug("Running database migrations")

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Migrations completed")
	return nil
}

func (s *SQLiteStore) loadSnapshot() error {
	if err := s.db.QueryRow(`SELECT last_seen_id FROM cursor WHERE id = 1`).Scan(&s.cursor); err != nil {
		return fmt.Errorf("failed to load cursor: %w", err)
	}

	rows, err := s.db.Query(`SELECT status_id FROM processed`)
	if err != nil {
		return fmt.Errorf("failed to load processed set: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan processed id: %w", err)
		}
		s.members[id] = struct{}{}
	}
	return rows.Err()
}

func (s *SQLiteStore) IsProcessed(statusID int64) bool {
	_, ok := s.members[statusID]
	return ok
}

func (s *SQLiteStore) MarkProcessed(statusID int64) error {
	if _, ok := s.members[statusID]; ok {
		return nil
	}

	_, err := s.db.Exec(
		`INSERT INTO processed (status_id) VALUES (?) ON CONFLICT(status_id) DO NOTHING`,
		statusID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	s.members[statusID] = struct{}{}

	return s.evictOldest()
}

// evictOldest trims the processed table to the configured cap, oldest rows
// first, and mirrors the removals in memory.
func (s *SQLiteStore) evictOldest() error {
	if s.maxIDs <= 0 || len(s.members) <= s.maxIDs {
		return nil
	}

	rows, err := s.db.Query(
		`SELECT status_id FROM processed ORDER BY rowid ASC LIMIT ?`,
		len(s.members)-s.maxIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to select eviction candidates: %w", err)
	}

	var evicted []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan eviction candidate: %w", err)
		}
		evicted = append(evicted, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range evicted {
		if _, err := s.db.Exec(`DELETE FROM processed WHERE status_id = ?`, id); err != nil {
			return fmt.Errorf("failed to evict processed id: %w", err)
		}
		delete(s.members, id)
	}
	return nil
}

func (s *SQLiteStore) Cursor() int64 {
	return s.cursor
}

func (s *SQLiteStore) AdvanceCursor(id int64) error {
	if id <= s.cursor {
		return nil
	}

	if _, err := s.db.Exec(`UPDATE cursor SET last_seen_id = ? WHERE id = 1`, id); err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}
	s.cursor = id
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
