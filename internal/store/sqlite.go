package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"assetsdb/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// tsLayout is the text encoding of instants stored in SQLite.
const tsLayout = time.RFC3339Nano

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_data (
		timestamp TEXT NOT NULL,
		ticker    TEXT NOT NULL,
		open      REAL NOT NULL,
		high      REAL NOT NULL,
		low       REAL NOT NULL,
		close     REAL NOT NULL,
		volume    INTEGER NOT NULL,
		UNIQUE (timestamp, ticker)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_data_ticker ON stock_data (ticker, timestamp)`,
	`CREATE TABLE IF NOT EXISTS mypicks (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker       TEXT UNIQUE NOT NULL,
		date_added   TEXT NOT NULL,
		date_removed TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS mypicks_history (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		date   TEXT NOT NULL,
		action TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticker_log (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		log_entry TEXT NOT NULL,
		ticker    TEXT NOT NULL,
		added     INTEGER NOT NULL
	)`,
}

// SQLiteStore implements Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore. Call Migrate before first use.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps pragmas and in-memory databases consistent; runs
	// are sequential anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating sqlite schema: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// UpsertBars inserts or overwrites bars inside a single transaction.
func (s *SQLiteStore) UpsertBars(ctx context.Context, bars []domain.Bar) (int, error) {
	bars = dedupBars(bars)
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_data (timestamp, ticker, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (timestamp, ticker) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, domain.FormatDate(b.Date), b.Ticker,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, fmt.Errorf("upserting %s %s: %w", b.Ticker, domain.FormatDate(b.Date), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// LastBarDates returns max(date) per ticker using parameterized IN lists.
func (s *SQLiteStore) LastBarDates(ctx context.Context, tickers []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(tickers))
	for _, chunk := range chunks(uniqueStrings(tickers), chunkSize) {
		query := `SELECT ticker, MAX(timestamp) FROM stock_data WHERE ticker IN (` +
			placeholders(len(chunk)) + `) GROUP BY ticker`
		rows, err := s.db.QueryContext(ctx, query, stringArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("querying last bar dates: %w", err)
		}
		for rows.Next() {
			var ticker, last string
			if err := rows.Scan(&ticker, &last); err != nil {
				rows.Close()
				return nil, err
			}
			d, err := domain.ParseDate(last)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("parsing stored date %q for %s: %w", last, ticker, err)
			}
			out[ticker] = d
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ListTickers returns the distinct tickers with stored bars.
func (s *SQLiteStore) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM stock_data ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// ReadBars returns bars for ticker in [start, end] ordered by date.
func (s *SQLiteStore) ReadBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, ticker, open, high, low, close, volume
		FROM stock_data
		WHERE ticker = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`,
		ticker, domain.FormatDate(start), domain.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b    domain.Bar
			date string
		)
		if err := rows.Scan(&date, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		if b.Date, err = domain.ParseDate(date); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadCloses returns all closes ordered by date then ticker.
func (s *SQLiteStore) ReadCloses(ctx context.Context) ([]domain.ClosePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, ticker, close
		FROM stock_data
		ORDER BY timestamp ASC, ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading closes: %w", err)
	}
	defer rows.Close()

	var points []domain.ClosePoint
	for rows.Next() {
		var (
			p    domain.ClosePoint
			date string
		)
		if err := rows.Scan(&date, &p.Ticker, &p.Close); err != nil {
			return nil, err
		}
		if p.Date, err = domain.ParseDate(date); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// ---------------------------------------------------------------------------
// UniverseStore implementation
// ---------------------------------------------------------------------------

// DeleteTickers removes every bar of the stored tickers among the given ones
// and logs each removal, all in one transaction.
func (s *SQLiteStore) DeleteTickers(ctx context.Context, tickers []string, at time.Time) ([]string, error) {
	tickers = uniqueStrings(tickers)
	if len(tickers) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var present []string
	for _, chunk := range chunks(tickers, chunkSize) {
		rows, err := tx.QueryContext(ctx,
			`SELECT DISTINCT ticker FROM stock_data WHERE ticker IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("finding stored tickers: %w", err)
		}
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				rows.Close()
				return nil, err
			}
			present = append(present, t)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	if len(present) == 0 {
		return nil, nil
	}
	present = uniqueStrings(present)

	for _, chunk := range chunks(present, chunkSize) {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM stock_data WHERE ticker IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...); err != nil {
			return nil, fmt.Errorf("deleting tickers: %w", err)
		}
	}

	stamp := at.UTC().Format(tsLayout)
	for _, t := range present {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ticker_log (log_entry, ticker, added) VALUES (?, ?, ?)`,
			stamp, t, false); err != nil {
			return nil, fmt.Errorf("logging deletion of %s: %w", t, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return present, nil
}

// TickerLog returns the ticker audit log in insertion order.
func (s *SQLiteStore) TickerLog(ctx context.Context) ([]domain.TickerLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT log_entry, ticker, added FROM ticker_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading ticker log: %w", err)
	}
	defer rows.Close()

	var entries []domain.TickerLogEntry
	for rows.Next() {
		var (
			e     domain.TickerLogEntry
			stamp string
		)
		if err := rows.Scan(&stamp, &e.Ticker, &e.Added); err != nil {
			return nil, err
		}
		if e.Time, err = time.Parse(tsLayout, stamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// PickStore implementation
// ---------------------------------------------------------------------------

// ActivePicks returns tickers whose record has no removal date.
func (s *SQLiteStore) ActivePicks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker FROM mypicks WHERE date_removed IS NULL ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing active picks: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Pick returns the record for ticker.
func (s *SQLiteStore) Pick(ctx context.Context, ticker string) (domain.PickRecord, bool, error) {
	var (
		rec     domain.PickRecord
		added   string
		removed sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ticker, date_added, date_removed FROM mypicks WHERE ticker = ?`, ticker).
		Scan(&rec.Ticker, &added, &removed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PickRecord{}, false, nil
	}
	if err != nil {
		return domain.PickRecord{}, false, fmt.Errorf("reading pick %s: %w", ticker, err)
	}

	if rec.DateAdded, err = time.Parse(tsLayout, added); err != nil {
		return domain.PickRecord{}, false, err
	}
	if removed.Valid {
		t, err := time.Parse(tsLayout, removed.String)
		if err != nil {
			return domain.PickRecord{}, false, err
		}
		rec.DateRemoved = &t
	}
	return rec, true, nil
}

// ApplyPickEvents upserts pick records and appends history in one transaction.
func (s *SQLiteStore) ApplyPickEvents(ctx context.Context, events []domain.PickEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		stamp := e.Time.UTC().Format(tsLayout)
		switch e.Action {
		case domain.PickAdded:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO mypicks (ticker, date_added, date_removed) VALUES (?, ?, NULL)
				ON CONFLICT (ticker) DO UPDATE SET
					date_added = excluded.date_added,
					date_removed = NULL`,
				e.Ticker, stamp)
		case domain.PickRemoved:
			_, err = tx.ExecContext(ctx,
				`UPDATE mypicks SET date_removed = ? WHERE ticker = ? AND date_removed IS NULL`,
				stamp, e.Ticker)
		default:
			return fmt.Errorf("unknown pick action %q for %s", e.Action, e.Ticker)
		}
		if err != nil {
			return fmt.Errorf("applying %s for %s: %w", e.Action, e.Ticker, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mypicks_history (ticker, action, date) VALUES (?, ?, ?)`,
			e.Ticker, string(e.Action), stamp); err != nil {
			return fmt.Errorf("appending history for %s: %w", e.Ticker, err)
		}
	}

	return tx.Commit()
}

// PickHistory returns events for ticker (or all when empty) in insertion order.
func (s *SQLiteStore) PickHistory(ctx context.Context, ticker string) ([]domain.PickEvent, error) {
	query := `SELECT ticker, action, date FROM mypicks_history`
	var args []any
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading pick history: %w", err)
	}
	defer rows.Close()

	var events []domain.PickEvent
	for rows.Next() {
		var (
			e             domain.PickEvent
			action, stamp string
		)
		if err := rows.Scan(&e.Ticker, &action, &stamp); err != nil {
			return nil, err
		}
		e.Action = domain.PickAction(action)
		if e.Time, err = time.Parse(tsLayout, stamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(s []string) []any {
	args := make([]any, len(s))
	for i, v := range s {
		args[i] = v
	}
	return args
}
