package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

// dialect captures what differs between the SQL stores.
type dialect struct {
	placeholder func(n int) string
	encodeTime  func(t time.Time) any
	intTime     bool
}

var postgresDialect = dialect{
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	encodeTime:  func(t time.Time) any { return t.UTC() },
}

var sqliteDialect = dialect{
	placeholder: func(int) string { return "?" },
	encodeTime:  func(t time.Time) any { return t.UnixNano() },
	intTime:     true,
}

// whereClause renders the item and bound predicates of f.
func whereClause(f FilterCriteria, d dialect, args []any) (string, []any) {
	var b strings.Builder
	args = append(args, f.ItemName)
	b.WriteString(" WHERE item = " + d.placeholder(len(args)))
	if f.Begin != nil {
		args = append(args, d.encodeTime(*f.Begin))
		b.WriteString(" AND time >= " + d.placeholder(len(args)))
	}
	if f.End != nil {
		args = append(args, d.encodeTime(*f.End))
		b.WriteString(" AND time <= " + d.placeholder(len(args)))
	}
	return b.String(), args
}

func buildSelect(table string, f FilterCriteria, d dialect) (string, []any) {
	where, args := whereClause(f, d, nil)
	query := "SELECT time, state FROM " + table + where + " ORDER BY time " + f.Ordering.String()
	if f.PageSize > 0 {
		args = append(args, f.PageSize)
		query += " LIMIT " + d.placeholder(len(args))
		args = append(args, f.PageSize*f.PageNumber)
		query += " OFFSET " + d.placeholder(len(args))
	}
	return query, args
}

func buildDelete(table string, f FilterCriteria, d dialect) (string, []any) {
	where, args := whereClause(f, d, nil)
	return "DELETE FROM " + table + where, args
}

func queryStates(ctx context.Context, db *sql.DB, table string, f FilterCriteria, d dialect) ([]models.HistoricState, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	query, args := buildSelect(table, f, d)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", f.ItemName, err)
	}
	defer rows.Close()

	var results []models.HistoricState
	for rows.Next() {
		var (
			ts   time.Time
			nano int64
			text string
		)
		if d.intTime {
			err = rows.Scan(&nano, &text)
			ts = time.Unix(0, nano)
		} else {
			err = rows.Scan(&ts, &text)
		}
		if err != nil {
			return nil, err
		}
		s, err := state.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("row of %s at %s: %w", f.ItemName, ts.Format(time.RFC3339), err)
		}
		results = append(results, models.HistoricState{Time: ts, State: s})
	}
	return results, rows.Err()
}

// batchInsert inserts states inside one transaction using a prepared
// statement. Either all states are inserted or none.
func batchInsert(ctx context.Context, db *sql.DB, table, item string, states []models.HistoricState, d dialect) error {
	if item == "" {
		return ErrMissingItem
	}
	if len(states) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (item, time, state) VALUES (%s, %s, %s)",
		table, d.placeholder(1), d.placeholder(2), d.placeholder(3),
	))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range states {
		if _, err := stmt.ExecContext(ctx, item, d.encodeTime(s.Time), s.State.String()); err != nil {
			return fmt.Errorf("failed to insert state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
