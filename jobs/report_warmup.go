package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/medipos/medipos/internal/reports"
)

// ReportWarmupJob keeps the dashboard caches warm so the first morning
// request does not pay the aggregate cost.
type ReportWarmupJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(reportsSvc *reports.Service, logger *slog.Logger) *ReportWarmupJob {
	return &ReportWarmupJob{Reports: reportsSvc, Logger: logger}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger()
	started := time.Now()
	logger.Info("starting report warmup")

	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := j.Reports.Invalidate(runCtx); err != nil {
		logger.Error("invalidate reports", slog.Any("error", err))
		return err
	}
	if err := j.Reports.Warm(runCtx); err != nil {
		logger.Error("warm reports", slog.Any("error", err))
		return err
	}
	if payload.SalesDays > 0 {
		if _, err := j.Reports.Sales(runCtx, payload.SalesDays); err != nil {
			logger.Error("warm sales series", slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed report warmup", slog.Duration("duration", time.Since(started)))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}
