// Package sqlstore persists ledger records through database/sql.
//
// Two dialects are supported: postgres (github.com/lib/pq) and sqlite
// (modernc.org/sqlite, pure Go). Each record is one row keyed by id; the
// full record is kept as a JSON body next to a few indexed columns used for
// filtering. The seq identity column gives insertion order.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"payment-ledger/pkg/payment"
	"payment-ledger/pkg/store"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Config holds database connection configuration.
type Config struct {
	// Dialect is postgres or sqlite
	Dialect Dialect

	// DSN is passed to sql.Open unchanged
	DSN string

	// Name identifies the store in logs and metrics
	Name string

	// Table is the records table name
	Table string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// PingTimeout bounds the connectivity check in Open
	PingTimeout time.Duration
}

// DefaultConfig returns a local postgres configuration.
func DefaultConfig() Config {
	return Config{
		Dialect:         Postgres,
		DSN:             PostgresDSN("localhost", 5432, "postgres", "postgres", "payment_ledger", "disable"),
		Table:           "ledger_records",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// PostgresDSN builds a lib/pq keyword/value connection string.
func PostgresDSN(host string, port int, user, password, database, sslMode string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslMode,
	)
}

// Store is a RecordStore backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	name    string
}

// Open connects to the database, checks connectivity and creates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := driverFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == SQLite {
		// sqlite serializes writers; one connection also keeps :memory: databases alive
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Dialect, err)
	}

	s, err := New(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database and creates the schema.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Store, error) {
	if _, err := driverFor(cfg.Dialect); err != nil {
		return nil, err
	}
	if cfg.Table == "" {
		cfg.Table = "ledger_records"
	}
	if !validIdentifier(cfg.Table) {
		return nil, fmt.Errorf("sqlstore: invalid table name %q", cfg.Table)
	}
	if cfg.Name == "" {
		cfg.Name = string(cfg.Dialect)
	}

	s := &Store{db: db, dialect: cfg.Dialect, table: cfg.Table, name: cfg.Name}
	if err := s.initTables(ctx); err != nil {
		return nil, fmt.Errorf("failed to init tables: %w", err)
	}
	return s, nil
}

func driverFor(d Dialect) (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case SQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", d)
	}
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func (s *Store) initTables(ctx context.Context) error {
	seqColumn := "seq BIGSERIAL PRIMARY KEY"
	amountType := "NUMERIC(20,4)"
	if s.dialect == SQLite {
		seqColumn = "seq INTEGER PRIMARY KEY AUTOINCREMENT"
		amountType = "TEXT"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			status TEXT NOT NULL,
			merchant_id TEXT NOT NULL DEFAULT '',
			customer_id TEXT NOT NULL DEFAULT '',
			amount %s NOT NULL,
			currency TEXT NOT NULL,
			body TEXT NOT NULL
		)`, s.table, seqColumn, amountType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_payment_id ON %s(payment_id)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_kind_status ON %s(kind, status)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_merchant_id ON %s(merchant_id)`, s.table, s.table),
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Put upserts the record by id. The seq column is assigned on first insert
// and kept on update.
func (s *Store) Put(ctx context.Context, rec payment.Record) (payment.Record, error) {
	if err := store.Validate(rec); err != nil {
		return payment.Record{}, err
	}

	stored := rec.Clone()
	stored.Seq = 0
	body, err := store.Encode(stored)
	if err != nil {
		return payment.Record{}, err
	}

	var merchant, customer, currency string
	var amount any
	switch stored.Kind {
	case payment.KindPayment:
		merchant = stored.Payment.MerchantID
		customer = stored.Payment.CustomerID
		currency = stored.Payment.Currency
		amount = stored.Payment.Amount
	case payment.KindRefund:
		currency = stored.Refund.Currency
		amount = stored.Refund.Amount
	}

	args := []any{stored.ID(), string(stored.Kind), stored.PaymentID(), stored.StatusString(),
		merchant, customer, amount, currency, string(body)}
	ph := make([]string, len(args))
	for i := range args {
		ph[i] = s.placeholder(i + 1)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, payment_id, status, merchant_id, customer_id, amount, currency, body)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, body = excluded.body
		RETURNING seq
	`, s.table, strings.Join(ph, ", "))

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&stored.Seq); err != nil {
		return payment.Record{}, fmt.Errorf("put record %s: %w", stored.ID(), err)
	}
	return stored, nil
}

// Get reads one record by id.
func (s *Store) Get(ctx context.Context, id string) (payment.Record, error) {
	query := fmt.Sprintf(`SELECT seq, body FROM %s WHERE id = %s`, s.table, s.placeholder(1))

	var seq int64
	var body []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&seq, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return payment.Record{}, store.NotFound(id)
	}
	if err != nil {
		return payment.Record{}, fmt.Errorf("query record %s: %w", id, err)
	}

	rec, err := store.Decode(body)
	if err != nil {
		return payment.Record{}, err
	}
	rec.Seq = seq
	return rec, nil
}

// Query filters on the indexed columns and orders by seq.
func (s *Store) Query(ctx context.Context, f store.Filter) ([]payment.Record, error) {
	var conds []string
	var args []any
	add := func(column, value string) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = %s", column, s.placeholder(len(args))))
	}

	if f.Kind != "" {
		add("kind", string(f.Kind))
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.PaymentID != "" {
		add("payment_id", f.PaymentID)
	}
	if f.MerchantID != "" || f.CustomerID != "" {
		add("kind", string(payment.KindPayment))
	}
	if f.MerchantID != "" {
		add("merchant_id", f.MerchantID)
	}
	if f.CustomerID != "" {
		add("customer_id", f.CustomerID)
	}

	query := fmt.Sprintf(`SELECT seq, body FROM %s`, s.table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make([]payment.Record, 0)
	for rows.Next() {
		var seq int64
		var body []byte
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := store.Decode(body)
		if err != nil {
			return nil, err
		}
		rec.Seq = seq
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

// Ping checks database connectivity. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Close() error {
	return s.db.Close()
}
