package medicines

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for medicines.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Medicine, int, error)
	Get(ctx context.Context, id int64) (*Medicine, error)
	Create(ctx context.Context, m Medicine) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	BelowThreshold(ctx context.Context, threshold int) ([]Medicine, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const medicineColumns = "id, name, quantity, price, expiry, created_at, updated_at"

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Quantity, &m.Price, &m.Expiry, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Medicine, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.MaxStock != nil {
		conditions = append(conditions, fmt.Sprintf("quantity <= $%d", argPos))
		args = append(args, *filter.MaxStock)
		argPos++
	}

	whereClause := ""
	for i, cond := range conditions {
		if i == 0 {
			whereClause = "WHERE " + cond
		} else {
			whereClause += " AND " + cond
		}
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM medicines %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM medicines %s ORDER BY name ASC LIMIT $%d OFFSET $%d",
		medicineColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var meds []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.Quantity, &m.Price, &m.Expiry, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		meds = append(meds, m)
	}
	return meds, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Medicine, error) {
	query := fmt.Sprintf("SELECT %s FROM medicines WHERE id = $1", medicineColumns)
	return scanMedicine(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) Create(ctx context.Context, m Medicine) (int64, error) {
	const query = `INSERT INTO medicines (name, quantity, price, expiry)
		VALUES ($1, $2, $3, $4) RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query, m.Name, m.Quantity, m.Price, m.Expiry).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrNameTaken
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE medicines SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{"name", "quantity", "price", "expiry"} {
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
			return ErrNameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM medicines WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) BelowThreshold(ctx context.Context, threshold int) ([]Medicine, error) {
	query := fmt.Sprintf("SELECT %s FROM medicines WHERE quantity <= $1 ORDER BY quantity ASC", medicineColumns)
	rows, err := r.pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meds []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.Quantity, &m.Price, &m.Expiry, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
