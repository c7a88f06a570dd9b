package invoices

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medipos/medipos/internal/platform/db"
)

// Repository defines the persistence boundary of the workflow engine. It
// spans the two collaborating stores: the stock store (medicines) and the
// invoice ledger. WithTx yields a Repository whose operations share one
// transaction, which is how the reserve-then-commit unit stays atomic.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetStock(ctx context.Context, name string) (*StockEntry, error)
	// DecrementStock performs the conditional decrement: it succeeds only if
	// quantity >= qty at the moment of the update, returning
	// InsufficientStockError or MedicineNotFoundError otherwise.
	DecrementStock(ctx context.Context, name string, qty int) error
	IncrementStock(ctx context.Context, name string, qty int) error

	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, limit, offset int) ([]Invoice, int, error)
	DeleteInvoice(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) GetStock(ctx context.Context, name string) (*StockEntry, error) {
	const query = `SELECT name, quantity, price FROM medicines WHERE name = $1`
	var s StockEntry
	err := r.db.QueryRow(ctx, query, name).Scan(&s.Name, &s.Quantity, &s.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &MedicineNotFoundError{Name: name}
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) DecrementStock(ctx context.Context, name string, qty int) error {
	const query = `UPDATE medicines SET quantity = quantity - $2, updated_at = NOW()
		WHERE name = $1 AND quantity >= $2`
	tag, err := r.db.Exec(ctx, query, name, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The guard rejected the update: distinguish a missing medicine from a
	// lost race for stock.
	var available int
	err = r.db.QueryRow(ctx, `SELECT quantity FROM medicines WHERE name = $1`, name).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &MedicineNotFoundError{Name: name}
		}
		return err
	}
	return &InsufficientStockError{Name: name, Requested: qty, Available: available}
}

func (r *repository) IncrementStock(ctx context.Context, name string, qty int) error {
	const query = `UPDATE medicines SET quantity = quantity + $2, updated_at = NOW() WHERE name = $1`
	tag, err := r.db.Exec(ctx, query, name, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &MedicineNotFoundError{Name: name}
	}
	return nil
}

func (r *repository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	const query = `INSERT INTO invoices (invoice_number, customer_name, customer_phone, total_amount, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	var phone pgtype.Text
	if inv.CustomerPhone != nil {
		phone = pgtype.Text{String: *inv.CustomerPhone, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, query,
		inv.InvoiceNumber, inv.CustomerName, phone, inv.TotalAmount, inv.Status, inv.IssuedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}

	for i, item := range inv.Items {
		_, err := r.db.Exec(ctx,
			`INSERT INTO invoice_items (invoice_id, line_order, name, quantity, price) VALUES ($1, $2, $3, $4, $5)`,
			id, i+1, item.Name, item.Quantity, item.Price,
		)
		if err != nil {
			return 0, fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return id, nil
}

const invoiceColumns = `id, invoice_number, customer_name, customer_phone, total_amount, status, issued_at, created_at, updated_at`

func (r *repository) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var phone pgtype.Text
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerName, &phone,
		&inv.TotalAmount, &inv.Status, &inv.IssuedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if phone.Valid {
		inv.CustomerPhone = &phone.String
	}
	return &inv, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceColumns)
	inv, err := r.scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM invoices WHERE invoice_number = $1", invoiceColumns)
	inv, err := r.scanInvoice(r.db.QueryRow(ctx, query, number))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) loadItems(ctx context.Context, inv *Invoice) error {
	rows, err := r.db.Query(ctx,
		`SELECT name, quantity, price FROM invoice_items WHERE invoice_id = $1 ORDER BY line_order ASC`,
		inv.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item LineItem
		if err := rows.Scan(&item.Name, &item.Quantity, &item.Price); err != nil {
			return err
		}
		inv.Items = append(inv.Items, item)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM invoices ORDER BY issued_at DESC, id DESC LIMIT $1 OFFSET $2", invoiceColumns)
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range list {
		if err := r.loadItems(ctx, &list[i]); err != nil {
			return nil, 0, err
		}
	}
	return list, total, nil
}

func (r *repository) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id = $1", id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isSerializationFailure reports SQLSTATE 40001/40P01, raised under repeatable
// read when a concurrent commit invalidates the transaction's snapshot.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
