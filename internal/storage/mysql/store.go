// Package mysql stores the ledger in MySQL through gorm.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"budget/internal/core"
	"budget/internal/storage"
)

type sqlPaymentMethod struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(100) COLLATE utf8mb4_bin;uniqueIndex;not null"`
}

func (*sqlPaymentMethod) TableName() string {
	return "payment_methods"
}

type sqlTransaction struct {
	ID              int64             `gorm:"primaryKey;autoIncrement"`
	Type            string            `gorm:"type:varchar(16);not null;index"`
	AmountCents     int64             `gorm:"not null"`
	Description     string            `gorm:"type:varchar(200);not null"`
	PaymentMethodID int64             `gorm:"not null;index"`
	PaymentMethod   *sqlPaymentMethod `gorm:"foreignKey:PaymentMethodID;constraint:OnDelete:RESTRICT"`
	CreatedAt       int64             `gorm:"column:created_at;autoCreateTime:false;not null;index"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

// entryRow is the joined transactions/payment_methods projection.
type entryRow struct {
	ID              int64
	Type            string
	AmountCents     int64
	Description     string
	PaymentMethodID int64
	CreatedAt       int64
	MethodName      string
}

func (r entryRow) toEntry() core.Entry {
	return core.Entry{
		Transaction: core.Transaction{
			ID:              r.ID,
			Type:            core.TransactionType(r.Type),
			Amount:          core.FromCents(r.AmountCents),
			Description:     r.Description,
			PaymentMethodID: r.PaymentMethodID,
			Timestamp:       time.Unix(0, r.CreatedAt).UTC(),
		},
		MethodName: r.MethodName,
	}
}

func fromTransaction(t core.Transaction) sqlTransaction {
	return sqlTransaction{
		ID:              t.ID,
		Type:            string(t.Type),
		AmountCents:     core.ToCents(t.Amount),
		Description:     t.Description,
		PaymentMethodID: t.PaymentMethodID,
		CreatedAt:       t.Timestamp.UnixNano(),
	}
}

// Store implements storage.Store on MySQL.
type Store struct {
	client *Client
	now    func() time.Time
}

// NewStore migrates the schema and returns a ready store.
func NewStore(ctx context.Context, client *Client) (*Store, error) {
	if err := client.DB().WithContext(ctx).AutoMigrate(&sqlPaymentMethod{}, &sqlTransaction{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

// ListMethods implements storage.MethodStore
func (s *Store) ListMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	var rows []sqlPaymentMethod
	if err := s.db(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, core.StorageError("list payment methods", err)
	}
	methods := make([]core.PaymentMethod, len(rows))
	for i, r := range rows {
		methods[i] = core.PaymentMethod{ID: r.ID, Name: r.Name}
	}
	return methods, nil
}

// CreateMethod implements storage.MethodStore
func (s *Store) CreateMethod(ctx context.Context, name string) (core.PaymentMethod, error) {
	row := sqlPaymentMethod{Name: name}
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var existing sqlPaymentMethod
		err := tx.Where("name = ?", name).First(&existing).Error
		if err == nil {
			return core.ErrDuplicateMethod
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return core.StorageError("check payment method", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return core.StorageError("insert payment method", err)
		}
		return nil
	})
	if err != nil {
		return core.PaymentMethod{}, err
	}

	slog.InfoContext(ctx, "Payment method saved", "id", row.ID, "name", row.Name, "dialect", "mysql")
	return core.PaymentMethod{ID: row.ID, Name: row.Name}, nil
}

// FindMethodByName implements storage.MethodStore
func (s *Store) FindMethodByName(ctx context.Context, name string) (core.PaymentMethod, error) {
	var row sqlPaymentMethod
	err := s.db(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.PaymentMethod{}, fmt.Errorf("%w: %q", core.ErrMethodNotFound, name)
	}
	if err != nil {
		return core.PaymentMethod{}, core.StorageError("find payment method", err)
	}
	return core.PaymentMethod{ID: row.ID, Name: row.Name}, nil
}

// CreateTransaction implements storage.TransactionStore
func (s *Store) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	t.Timestamp = t.Timestamp.UTC()

	row := fromTransaction(t)
	row.ID = 0
	if err := s.db(ctx).Create(&row).Error; err != nil {
		return core.Transaction{}, core.StorageError("insert transaction", err)
	}
	t.ID = row.ID

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", row.AmountCents,
		"description", t.Description,
		"payment_method_id", t.PaymentMethodID)
	return t, nil
}

func (s *Store) entries(ctx context.Context) *gorm.DB {
	return s.db(ctx).
		Table("transactions t").
		Select("t.id, t.type, t.amount_cents, t.description, t.payment_method_id, t.created_at, pm.name AS method_name").
		Joins("JOIN payment_methods pm ON t.payment_method_id = pm.id")
}

// GetTransaction implements storage.TransactionStore
func (s *Store) GetTransaction(ctx context.Context, id int64) (core.Entry, error) {
	var rows []entryRow
	if err := s.entries(ctx).Where("t.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return core.Entry{}, core.StorageError("get transaction", err)
	}
	if len(rows) == 0 {
		return core.Entry{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	return rows[0].toEntry(), nil
}

// UpdateTransaction implements storage.TransactionStore
func (s *Store) UpdateTransaction(ctx context.Context, id int64, f core.TransactionFields) (core.Transaction, error) {
	var updated core.Transaction
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		var row sqlTransaction
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
		}
		if err != nil {
			return core.StorageError("lock transaction", err)
		}

		if err := tx.Model(&sqlTransaction{}).Where("id = ?", id).Updates(map[string]any{
			"type":              string(f.Type),
			"amount_cents":      core.ToCents(f.Amount),
			"description":       f.Description,
			"payment_method_id": f.PaymentMethodID,
		}).Error; err != nil {
			return core.StorageError("update transaction", err)
		}
		updated = core.Transaction{ID: id, Timestamp: time.Unix(0, row.CreatedAt).UTC()}.Apply(f)
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return updated, nil
}

// DeleteTransaction implements storage.TransactionStore
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	res := s.db(ctx).Where("id = ?", id).Delete(&sqlTransaction{})
	if res.Error != nil {
		return core.StorageError("delete transaction", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	return nil
}

// ListEntries implements storage.TransactionStore
func (s *Store) ListEntries(ctx context.Context) ([]core.Entry, error) {
	var rows []entryRow
	if err := s.entries(ctx).Order("t.created_at DESC, t.id DESC").Scan(&rows).Error; err != nil {
		return nil, core.StorageError("list transactions", err)
	}
	entries := make([]core.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r.toEntry()
	}
	return entries, nil
}

// Totals implements storage.AggregateReader
func (s *Store) Totals(ctx context.Context) (core.Totals, error) {
	var sums struct {
		Earnings int64
		Expenses int64
	}
	err := s.db(ctx).Model(&sqlTransaction{}).Select(
		"COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS earnings, "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount_cents ELSE 0 END), 0) AS expenses",
		string(core.Earning), string(core.Expense),
	).Scan(&sums).Error
	if err != nil {
		return core.Totals{}, core.StorageError("sum transactions", err)
	}
	return core.Totals{Earnings: core.FromCents(sums.Earnings), Expenses: core.FromCents(sums.Expenses)}, nil
}

// DescriptionBreakdown implements storage.AggregateReader
func (s *Store) DescriptionBreakdown(ctx context.Context, t core.TransactionType) ([]core.DescriptionAmount, error) {
	var rows []struct {
		Description string
		AmountCents int64
	}
	err := s.db(ctx).Model(&sqlTransaction{}).
		Select("description, amount_cents").
		Where("type = ?", string(t)).
		Order("created_at DESC, id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, core.StorageError("breakdown by description", err)
	}
	out := make([]core.DescriptionAmount, len(rows))
	for i, r := range rows {
		out[i] = core.DescriptionAmount{Description: r.Description, Amount: core.FromCents(r.AmountCents)}
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
