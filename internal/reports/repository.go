package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the aggregate queries backing the dashboards.
type Repository interface {
	Summary(ctx context.Context, lowStockThreshold int, expiryWindow time.Duration) (*DashboardSummary, error)
	DailySales(ctx context.Context, days int) ([]SalesPoint, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Summary(ctx context.Context, lowStockThreshold int, expiryWindow time.Duration) (*DashboardSummary, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM medicines),
			(SELECT COALESCE(SUM(quantity * price), 0) FROM medicines),
			(SELECT COUNT(*) FROM medicines WHERE quantity > 0 AND quantity <= $1),
			(SELECT COUNT(*) FROM medicines WHERE quantity = 0),
			(SELECT COUNT(*) FROM medicines WHERE expiry <= NOW() + $2::interval),
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM invoices),
			(SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE issued_at >= date_trunc('day', NOW())),
			(SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE issued_at >= date_trunc('month', NOW()))
	`
	interval := expiryWindow.String()
	var s DashboardSummary
	err := r.pool.QueryRow(ctx, query, lowStockThreshold, interval).Scan(
		&s.MedicineCount, &s.StockValue, &s.LowStockCount, &s.OutOfStockCount,
		&s.ExpiringSoon, &s.CustomerCount, &s.InvoiceCount, &s.RevenueToday, &s.RevenueThisMonth,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) DailySales(ctx context.Context, days int) ([]SalesPoint, error) {
	const query = `
		SELECT date_trunc('day', issued_at) AS day, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM invoices
		WHERE issued_at >= date_trunc('day', NOW()) - ($1::int - 1) * interval '1 day'
		GROUP BY day
		ORDER BY day ASC
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []SalesPoint
	for rows.Next() {
		var p SalesPoint
		if err := rows.Scan(&p.Day, &p.Invoices, &p.Revenue); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	return series, rows.Err()
}
