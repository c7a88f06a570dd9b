package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockScanJob walks the catalogue flagging low and soon-to-expire stock so
// the pharmacist sees the alerts before the counter opens.
type StockScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewStockScanJob wires dependencies for the stock scan handler.
func NewStockScanJob(pool *pgxpool.Pool, logger *slog.Logger) *StockScanJob {
	return &StockScanJob{Pool: pool, Logger: logger}
}

// Handle processes stock scan tasks.
func (j *StockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock scan: handler not configured")
	}
	var payload StockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LowStockThreshold <= 0 {
		payload.LowStockThreshold = 10
	}
	window, err := time.ParseDuration(payload.ExpiryWindow)
	if err != nil || window <= 0 {
		window = 30 * 24 * time.Hour
	}

	logger := j.logger()
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	low, err := j.scanLowStock(runCtx, payload.LowStockThreshold)
	if err != nil {
		logger.Error("scan low stock", slog.Any("error", err))
		return err
	}
	for _, m := range low {
		logger.Warn("low stock", slog.String("medicine", m.name), slog.Int("quantity", m.quantity))
	}

	expiring, err := j.scanExpiring(runCtx, window)
	if err != nil {
		logger.Error("scan expiring stock", slog.Any("error", err))
		return err
	}
	for _, m := range expiring {
		logger.Warn("expiring stock", slog.String("medicine", m.name), slog.Time("expiry", m.expiry))
	}

	logger.Info("completed stock scan",
		slog.Int("low_stock", len(low)),
		slog.Int("expiring", len(expiring)),
		slog.Duration("duration", time.Since(started)))
	return nil
}

type scannedMedicine struct {
	name     string
	quantity int
	expiry   time.Time
}

func (j *StockScanJob) scanLowStock(ctx context.Context, threshold int) ([]scannedMedicine, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT name, quantity FROM medicines WHERE quantity <= $1 ORDER BY quantity ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scannedMedicine
	for rows.Next() {
		var m scannedMedicine
		if err := rows.Scan(&m.name, &m.quantity); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (j *StockScanJob) scanExpiring(ctx context.Context, window time.Duration) ([]scannedMedicine, error) {
	rows, err := j.Pool.Query(ctx,
		`SELECT name, expiry FROM medicines WHERE expiry <= NOW() + $1::interval ORDER BY expiry ASC`, window.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scannedMedicine
	for rows.Next() {
		var m scannedMedicine
		if err := rows.Scan(&m.name, &m.expiry); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (j *StockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockScan))
	}
	return slog.Default().With(slog.String("job", TaskStockScan))
}
