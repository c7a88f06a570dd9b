package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for customers.
type Repository interface {
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	Create(ctx context.Context, c Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, name, phone, email, street, city, state, pincode, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var email, street, city, state, pincode pgtype.Text
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &email, &street, &city, &state, &pincode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	c.Address = Address{Street: street.String, City: city.String, State: state.String, Pincode: pincode.String}
	return &c, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers").Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM customers ORDER BY created_at DESC LIMIT $1 OFFSET $2", customerColumns)
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *c)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := fmt.Sprintf("SELECT %s FROM customers WHERE id = $1", customerColumns)
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	const query = `INSERT INTO customers (name, phone, email, street, city, state, pincode)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	var email pgtype.Text
	if c.Email != nil {
		email = pgtype.Text{String: *c.Email, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, query, c.Name, c.Phone, email,
		c.Address.Street, c.Address.City, c.Address.State, c.Address.Pincode).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrPhoneTaken
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE customers SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"name", "phone", "email", "street", "city", "state", "pincode"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPhoneTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM customers WHERE id = $1", id)
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
