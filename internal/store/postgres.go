package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"assetsdb/internal/domain"
)

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stock_data (
		timestamp DATE NOT NULL,
		ticker    TEXT NOT NULL,
		open      DOUBLE PRECISION NOT NULL,
		high      DOUBLE PRECISION NOT NULL,
		low       DOUBLE PRECISION NOT NULL,
		close     DOUBLE PRECISION NOT NULL,
		volume    BIGINT NOT NULL,
		UNIQUE (timestamp, ticker)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_data_ticker ON stock_data (ticker, timestamp)`,
	`CREATE TABLE IF NOT EXISTS mypicks (
		id           BIGSERIAL PRIMARY KEY,
		ticker       TEXT UNIQUE NOT NULL,
		date_added   TIMESTAMPTZ NOT NULL,
		date_removed TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS mypicks_history (
		id     BIGSERIAL PRIMARY KEY,
		ticker TEXT NOT NULL,
		date   TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticker_log (
		id        BIGSERIAL PRIMARY KEY,
		log_entry TIMESTAMPTZ NOT NULL,
		ticker    TEXT NOT NULL,
		added     BOOLEAN NOT NULL
	)`,
}

var timescaleSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS timescaledb`,
	`SELECT create_hypertable('stock_data', 'timestamp', if_not_exists => TRUE, migrate_data => TRUE)`,
}

var barColumns = []string{"timestamp", "ticker", "open", "high", "low", "close", "volume"}

// PostgresStore implements Store on PostgreSQL, optionally with the bars
// table converted to a TimescaleDB hypertable.
type PostgresStore struct {
	conn      *pgx.Conn
	timescale bool
}

// NewPostgresStore connects to the database at url.
func NewPostgresStore(ctx context.Context, url string, timescale bool) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &PostgresStore{conn: conn, timescale: timescale}, nil
}

// Close closes the connection.
func (s *PostgresStore) Close() error {
	return s.conn.Close(context.Background())
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.timescale {
		stmts = append(append([]string{}, postgresSchema...), timescaleSchema...)
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrating postgres schema: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// UpsertBars copies bars into a transaction-scoped staging table and merges
// them into stock_data in one statement.
func (s *PostgresStore) UpsertBars(ctx context.Context, bars []domain.Bar) (int, error) {
	bars = dedupBars(bars)
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE stock_data_staging
		(LIKE stock_data INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("creating staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"stock_data_staging"},
		barColumns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			b := bars[i]
			return []any{b.Date, b.Ticker, b.Open, b.High, b.Low, b.Close, b.Volume}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying bars: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO stock_data (timestamp, ticker, open, high, low, close, volume)
		SELECT timestamp, ticker, open, high, low, close, volume FROM stock_data_staging
		ON CONFLICT (timestamp, ticker) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`)
	if err != nil {
		return 0, fmt.Errorf("merging bars: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// LastBarDates returns max(date) per ticker in one query.
func (s *PostgresStore) LastBarDates(ctx context.Context, tickers []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(tickers))
	if len(tickers) == 0 {
		return out, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT ticker, MAX(timestamp) FROM stock_data
		WHERE ticker = ANY($1)
		GROUP BY ticker`, uniqueStrings(tickers))
	if err != nil {
		return nil, fmt.Errorf("querying last bar dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticker string
			last   time.Time
		)
		if err := rows.Scan(&ticker, &last); err != nil {
			return nil, err
		}
		out[ticker] = domain.DateOf(last)
	}
	return out, rows.Err()
}

// ListTickers returns the distinct tickers with stored bars.
func (s *PostgresStore) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT ticker FROM stock_data ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing tickers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ReadBars returns bars for ticker in [start, end] ordered by date.
func (s *PostgresStore) ReadBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp, ticker, open, high, low, close, volume
		FROM stock_data
		WHERE ticker = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp`,
		ticker, domain.DateOf(start), domain.DateOf(end))
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Date, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Date = domain.DateOf(b.Date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadCloses returns all closes ordered by date then ticker.
func (s *PostgresStore) ReadCloses(ctx context.Context) ([]domain.ClosePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp, ticker, close
		FROM stock_data
		ORDER BY timestamp ASC, ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("reading closes: %w", err)
	}
	defer rows.Close()

	var points []domain.ClosePoint
	for rows.Next() {
		var p domain.ClosePoint
		if err := rows.Scan(&p.Date, &p.Ticker, &p.Close); err != nil {
			return nil, err
		}
		p.Date = domain.DateOf(p.Date)
		points = append(points, p)
	}
	return points, rows.Err()
}

// ---------------------------------------------------------------------------
// UniverseStore implementation
// ---------------------------------------------------------------------------

// DeleteTickers removes all bars of the given tickers and logs each ticker
// that actually had bars, in one transaction.
func (s *PostgresStore) DeleteTickers(ctx context.Context, tickers []string, at time.Time) ([]string, error) {
	tickers = uniqueStrings(tickers)
	if len(tickers) == 0 {
		return nil, nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		WITH deleted AS (
			DELETE FROM stock_data WHERE ticker = ANY($1) RETURNING ticker
		)
		SELECT DISTINCT ticker FROM deleted ORDER BY ticker`, tickers)
	if err != nil {
		return nil, fmt.Errorf("deleting tickers: %w", err)
	}
	deleted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("deleting tickers: %w", err)
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO ticker_log (log_entry, ticker, added)
		SELECT $1, t, FALSE FROM unnest($2::text[]) AS t`,
		at.UTC(), deleted); err != nil {
		return nil, fmt.Errorf("logging deletions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return deleted, nil
}

// TickerLog returns the audit log in insertion order.
func (s *PostgresStore) TickerLog(ctx context.Context) ([]domain.TickerLogEntry, error) {
	rows, err := s.conn.Query(ctx, `SELECT log_entry, ticker, added FROM ticker_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reading ticker log: %w", err)
	}
	defer rows.Close()

	var entries []domain.TickerLogEntry
	for rows.Next() {
		var e domain.TickerLogEntry
		if err := rows.Scan(&e.Time, &e.Ticker, &e.Added); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// PickStore implementation
// ---------------------------------------------------------------------------

// ActivePicks returns tickers whose record has no removal date.
func (s *PostgresStore) ActivePicks(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT ticker FROM mypicks WHERE date_removed IS NULL ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("listing active picks: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Pick returns the record for ticker.
func (s *PostgresStore) Pick(ctx context.Context, ticker string) (domain.PickRecord, bool, error) {
	var (
		rec     domain.PickRecord
		removed *time.Time
	)
	err := s.conn.QueryRow(ctx,
		`SELECT ticker, date_added, date_removed FROM mypicks WHERE ticker = $1`, ticker).
		Scan(&rec.Ticker, &rec.DateAdded, &removed)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PickRecord{}, false, nil
	}
	if err != nil {
		return domain.PickRecord{}, false, fmt.Errorf("reading pick %s: %w", ticker, err)
	}
	rec.DateAdded = rec.DateAdded.UTC()
	if removed != nil {
		t := removed.UTC()
		rec.DateRemoved = &t
	}
	return rec, true, nil
}

// ApplyPickEvents upserts pick records and appends history in one transaction.
func (s *PostgresStore) ApplyPickEvents(ctx context.Context, events []domain.PickEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		at := e.Time.UTC()
		switch e.Action {
		case domain.PickAdded:
			_, err = tx.Exec(ctx, `
				INSERT INTO mypicks (ticker, date_added, date_removed) VALUES ($1, $2, NULL)
				ON CONFLICT (ticker) DO UPDATE SET
					date_added = EXCLUDED.date_added,
					date_removed = NULL`,
				e.Ticker, at)
		case domain.PickRemoved:
			_, err = tx.Exec(ctx,
				`UPDATE mypicks SET date_removed = $1 WHERE ticker = $2 AND date_removed IS NULL`,
				at, e.Ticker)
		default:
			return fmt.Errorf("unknown pick action %q for %s", e.Action, e.Ticker)
		}
		if err != nil {
			return fmt.Errorf("applying %s for %s: %w", e.Action, e.Ticker, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO mypicks_history (ticker, action, date) VALUES ($1, $2, $3)`,
			e.Ticker, string(e.Action), at); err != nil {
			return fmt.Errorf("appending history for %s: %w", e.Ticker, err)
		}
	}

	return tx.Commit(ctx)
}

// PickHistory returns events for ticker (or all when empty) in insertion order.
func (s *PostgresStore) PickHistory(ctx context.Context, ticker string) ([]domain.PickEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ticker, action, date FROM mypicks_history
		WHERE $1 = '' OR ticker = $1
		ORDER BY id`, ticker)
	if err != nil {
		return nil, fmt.Errorf("reading pick history: %w", err)
	}
	defer rows.Close()

	var events []domain.PickEvent
	for rows.Next() {
		var (
			e      domain.PickEvent
			action string
		)
		if err := rows.Scan(&e.Ticker, &action, &e.Time); err != nil {
			return nil, err
		}
		e.Action = domain.PickAction(action)
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
