package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/models"
	"slr-manager/providers"
	"slr-manager/providers/searchservice"
)

// stuckAfter ist die Zeit, nach der ein Auftrag in "processing" als verwaist gilt.
const stuckAfter = 5 * time.Minute

// defaultMaxDelay greift, wenn MaxDelay nicht gesetzt ist.
const defaultMaxDelay = 6 * time.Hour

// SearchJobWorker stellt Suchaufträge aus der Outbox an den Search-Service zu.
// ProcessBatch wird vom Cron-Scheduler aufgerufen.
type SearchJobWorker struct {
	DB        *gorm.DB
	Remote    providers.SearchService
	Logger    *zap.Logger
	BatchSize int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Now       func() time.Time
}

// NewSearchJobWorker erstellt einen neuen SearchJobWorker.
func NewSearchJobWorker(db *gorm.DB, remote providers.SearchService, batchSize int, logger *zap.Logger) *SearchJobWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SearchJobWorker{
		DB:        db,
		Remote:    remote,
		Logger:    logger,
		BatchSize: batchSize,
		BaseDelay: time.Minute,
		MaxDelay:  defaultMaxDelay,
		Now:       time.Now,
	}
}

// ProcessBatch setzt verwaiste Aufträge zurück, beansprucht bis zu BatchSize fällige
// Aufträge und stellt sie zu. Gibt die Anzahl bearbeiteter Aufträge zurück.
func (w *SearchJobWorker) ProcessBatch(ctx context.Context) (int, error) {
	now := w.Now()
	db := w.DB.WithContext(ctx)

	if err := db.Model(&models.SearchJob{}).
		Where("status = ? AND updated_at < ?", models.SearchJobProcessing, now.Add(-stuckAfter)).
		Update("status", models.SearchJobPending).Error; err != nil {
		w.Logger.Warn("Failed to reset stuck search jobs", zap.Error(err))
	}

	var jobs []models.SearchJob
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", models.SearchJobPending).
			Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
			Order("id").
			Limit(w.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]uint, len(jobs))
		for i := range jobs {
			ids[i] = jobs[i].ID
		}
		return tx.Model(&models.SearchJob{}).Where("id IN ?", ids).
			Update("status", models.SearchJobProcessing).Error
	})
	if err != nil {
		return 0, apperr.Internal(err, "claim search jobs")
	}

	for i := range jobs {
		w.process(ctx, &jobs[i])
	}
	if len(jobs) > 0 {
		w.Logger.Info("Search job batch processed", zap.Int("count", len(jobs)))
	}
	return len(jobs), nil
}

func (w *SearchJobWorker) process(ctx context.Context, job *models.SearchJob) {
	ctx = correlation.With(ctx, job.CorrelationID)
	log := w.Logger.With(
		zap.Uint("job_id", job.ID),
		zap.Uint("data_source_id", job.DataSourceID),
		zap.String("correlation_id", job.CorrelationID))

	resp, err := w.Remote.CreateSearch(ctx, job.DataSourceID, searchservice.CreateSearchRequest{
		ProtocolID: job.ProtocolID,
		Query:      job.Query,
	})

	now := w.Now()
	retries := job.RetryCount + 1
	updates := map[string]any{
		"processed_at": now,
		"retry_count":  retries,
	}

	switch {
	case err == nil:
		updates["status"] = models.SearchJobCompleted
		updates["last_error"] = nil
		updates["next_retry_at"] = nil
		updates["remote_search_id"] = resp.ID
		remoteCallsCounter.WithLabelValues("create_search", "ok").Inc()
		log.Info("Search job completed", zap.Uint("search_id", resp.ID))
	case apperr.HasKind(err, apperr.KindRemoteOperationFailed) || retries > job.MaxRetries:
		msg := err.Error()
		updates["status"] = models.SearchJobFailed
		updates["last_error"] = &msg
		updates["next_retry_at"] = nil
		remoteCallsCounter.WithLabelValues("create_search", "failed").Inc()
		log.Error("Search job failed", zap.Int("retry_count", retries), zap.Error(err))
	default:
		msg := err.Error()
		next := now.Add(w.backoff(job.RetryCount))
		updates["status"] = models.SearchJobPending
		updates["last_error"] = &msg
		updates["next_retry_at"] = &next
		remoteCallsCounter.WithLabelValues("create_search", "unavailable").Inc()
		log.Warn("Search job failed, will retry",
			zap.Int("retry_count", retries),
			zap.Time("next_retry_at", next),
			zap.Error(err))
	}

	status := updates["status"].(models.SearchJobStatus)
	searchJobsCounter.WithLabelValues(string(status)).Inc()
	if err := w.DB.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		log.Error("Failed to update search job status", zap.Error(err))
	}
}

// backoff liefert BaseDelay * 2^retryCount, höchstens MaxDelay.
func (w *SearchJobWorker) backoff(retryCount int) time.Duration {
	limit := w.MaxDelay
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	delay := w.BaseDelay
	for i := 0; i < retryCount && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}
