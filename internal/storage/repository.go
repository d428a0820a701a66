package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour spoken by SQLRepository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// SQLRepository persists the ledger through database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLiteRepository opens (creating it if needed) the SQLite database at dbPath
// and applies migrations.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(DialectSQLite, dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open(DialectSQLite.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectSQLite, now: time.Now}, nil
}

// NewPostgresRepository connects to PostgreSQL at dsn and applies migrations.
func NewPostgresRepository(dsn string) (*SQLRepository, error) {
	if err := RunMigrations(DialectPostgres, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(DialectPostgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectPostgres, now: time.Now}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Dialect reports the SQL flavour of r.
func (r *SQLRepository) Dialect() Dialect {
	return r.dialect
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// withTx runs fn inside a database transaction, committing only when fn succeeds.
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMethods implements MethodStore
func (r *SQLRepository) ListMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, core.StorageError("list payment methods", err)
	}
	defer rows.Close()

	var methods []core.PaymentMethod
	for rows.Next() {
		var m core.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, core.StorageError("scan payment method", err)
		}
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("list payment methods", err)
	}
	return methods, nil
}

// CreateMethod implements MethodStore
func (r *SQLRepository) CreateMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	m := core.PaymentMethod{Name: name}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM payment_methods WHERE name = ?`), name).Scan(&exists)
		if err == nil {
			return core.ErrDuplicateMethod
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return core.StorageError("check payment method", err)
		}
		if err := tx.QueryRowContext(ctx,
			r.rebind(`INSERT INTO payment_methods (name) VALUES (?) RETURNING id`), name,
		).Scan(&m.ID); err != nil {
			return core.StorageError("insert payment method", err)
		}
		return nil
	})
	if err != nil {
		return core.PaymentMethod{}, asStorageError("create payment method", err)
	}

	slog.InfoContext(ctx, "Payment method saved", "id", m.ID, "name", m.Name, "dialect", r.dialect)
	return m, nil
}

// FindMethodByName implements MethodStore
func (r *SQLRepository) FindMethodByName(ctx context.Context, name string) (core.PaymentMethod, error) {
	var m core.PaymentMethod
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT id, name FROM payment_methods WHERE name = ?`), name,
	).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentMethod{}, fmt.Errorf("%w: %q", core.ErrMethodNotFound, name)
	}
	if err != nil {
		return core.PaymentMethod{}, core.StorageError("find payment method", err)
	}
	return m, nil
}

// CreateTransaction implements TransactionStore
func (r *SQLRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = r.now()
	}
	t.Timestamp = t.Timestamp.UTC()

	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO transactions (type, amount_cents, description, payment_method_id, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		string(t.Type), core.ToCents(t.Amount), t.Description, t.PaymentMethodID, t.Timestamp.UnixNano(),
	).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, core.StorageError("insert transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", core.ToCents(t.Amount),
		"description", t.Description,
		"payment_method_id", t.PaymentMethodID)

	return t, nil
}

const entryColumns = `t.id, t.type, t.amount_cents, t.description, t.payment_method_id, t.created_at, pm.name`

func scanEntry(scan func(dest ...any) error) (core.Entry, error) {
	var (
		e         core.Entry
		typ       string
		cents     int64
		createdAt int64
	)
	if err := scan(&e.ID, &typ, &cents, &e.Description, &e.PaymentMethodID, &createdAt, &e.MethodName); err != nil {
		return core.Entry{}, err
	}
	e.Type = core.TransactionType(typ)
	e.Amount = core.FromCents(cents)
	e.Timestamp = time.Unix(0, createdAt).UTC()
	return e, nil
}

// GetTransaction implements TransactionStore
func (r *SQLRepository) GetTransaction(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+entryColumns+`
		FROM transactions t
		JOIN payment_methods pm ON t.payment_method_id = pm.id
		WHERE t.id = ?`), id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	if err != nil {
		return core.Entry{}, core.StorageError("get transaction", err)
	}
	return e, nil
}

// UpdateTransaction implements TransactionStore
func (r *SQLRepository) UpdateTransaction(ctx context.Context, id int64, f core.TransactionFields) (core.Transaction, error) {
	var updated core.Transaction
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.rebind(`
			UPDATE transactions
			SET type = ?, amount_cents = ?, description = ?, payment_method_id = ?
			WHERE id = ?`),
			string(f.Type), core.ToCents(f.Amount), f.Description, f.PaymentMethodID, id)
		if err != nil {
			return core.StorageError("update transaction", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return core.StorageError("update transaction", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
		}

		var createdAt int64
		if err := tx.QueryRowContext(ctx,
			r.rebind(`SELECT created_at FROM transactions WHERE id = ?`), id,
		).Scan(&createdAt); err != nil {
			return core.StorageError("reload transaction", err)
		}
		updated = core.Transaction{ID: id, Timestamp: time.Unix(0, createdAt).UTC()}.Apply(f)
		return nil
	})
	if err != nil {
		return core.Transaction{}, asStorageError("update transaction", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "type", f.Type, "amount_cents", core.ToCents(f.Amount))
	return updated, nil
}

// DeleteTransaction implements TransactionStore
func (r *SQLRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		return core.StorageError("delete transaction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.StorageError("delete transaction", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// ListEntries implements TransactionStore
func (r *SQLRepository) ListEntries(ctx context.Context) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM transactions t
		JOIN payment_methods pm ON t.payment_method_id = pm.id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, core.StorageError("list transactions", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, core.StorageError("scan transaction", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("list transactions", err)
	}
	return entries, nil
}

// Totals implements AggregateReader
func (r *SQLRepository) Totals(ctx context.Context) (core.Totals, error) {
	var earnings, expenses int64
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0)
		FROM transactions`),
		string(core.Earning), string(core.Expense),
	).Scan(&earnings, &expenses)
	if err != nil {
		return core.Totals{}, core.StorageError("sum transactions", err)
	}
	return core.Totals{
		Earnings: core.FromCents(earnings),
		Expenses: core.FromCents(expenses),
	}, nil
}

// DescriptionBreakdown implements AggregateReader
func (r *SQLRepository) DescriptionBreakdown(ctx context.Context, t core.TransactionType) ([]core.DescriptionAmount, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT description, amount_cents
		FROM transactions
		WHERE type = ?
		ORDER BY created_at DESC, id DESC`), string(t))
	if err != nil {
		return nil, core.StorageError("breakdown by description", err)
	}
	defer rows.Close()

	var out []core.DescriptionAmount
	for rows.Next() {
		var (
			d     core.DescriptionAmount
			cents int64
		)
		if err := rows.Scan(&d.Description, &cents); err != nil {
			return nil, core.StorageError("scan breakdown", err)
		}
		d.Amount = core.FromCents(cents)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("breakdown by description", err)
	}
	return out, nil
}

// asStorageError keeps domain errors as they are and tags anything else as a
// storage failure.
func asStorageError(op string, err error) error {
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrStorage) {
		return err
	}
	return core.StorageError(op, err)
}

var _ Store = (*SQLRepository)(nil)
