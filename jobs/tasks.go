// Package jobs holds the background tasks run by the worker process.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportWarmup pre-populates the dashboard report caches.
	TaskReportWarmup = "reports:warmup"
	// TaskStockScan checks the catalogue for low and expiring stock.
	TaskStockScan = "stock:scan"
)

// ReportWarmupPayload configures a warmup run.
type ReportWarmupPayload struct {
	SalesDays int `json:"sales_days"`
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// StockScanPayload configures a stock scan run.
type StockScanPayload struct {
	LowStockThreshold int    `json:"low_stock_threshold"`
	ExpiryWindow      string `json:"expiry_window"`
}

// NewStockScanTask constructs a stock scan task.
func NewStockScanTask(payload StockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockScan, data), nil
}
