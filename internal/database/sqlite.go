package database

import (
	"context"
	"database/sql"
	"fmt"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

// SQLiteRepo implements Store on a single SQLite file. Times are stored as
// unix nanoseconds.
type SQLiteRepo struct {
	db    *sql.DB
	table string
}

// NewSQLiteRepo opens path, applies WAL pragmas and creates the table if
// needed.
func NewSQLiteRepo(path, table string) (*SQLiteRepo, error) {
	if path == "" {
		path = "itemhistory.db"
	}
	if table == "" {
		table = "item_states"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY on concurrent persists.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			item  TEXT    NOT NULL,
			time  INTEGER NOT NULL,
			state TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS %[1]s_item_time ON %[1]s (item, time);`, table)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRepo{db: db, table: table}, nil
}

func (s *SQLiteRepo) Query(ctx context.Context, filter FilterCriteria) ([]models.HistoricState, error) {
	return queryStates(ctx, s.db, s.table, filter, sqliteDialect)
}

func (s *SQLiteRepo) Persist(ctx context.Context, item string, states ...models.HistoricState) error {
	return batchInsert(ctx, s.db, s.table, item, states, sqliteDialect)
}

func (s *SQLiteRepo) Remove(ctx context.Context, filter FilterCriteria) error {
	if err := filter.validate(); err != nil {
		return err
	}
	query, args := buildDelete(s.table, filter, sqliteDialect)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove %s: %w", filter.ItemName, err)
	}
	return nil
}

func (s *SQLiteRepo) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteRepo)(nil)
