package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/correlation"
	"slr-manager/models"
)

// SearchRequestService schreibt Suchaufträge in die Outbox. Zugestellt werden sie vom SearchJobWorker.
type SearchRequestService struct {
	DB         *gorm.DB
	Links      *LinkManager
	MaxRetries int
	Logger     *zap.Logger
}

// NewSearchRequestService erstellt eine neue Instanz des SearchRequestService.
func NewSearchRequestService(db *gorm.DB, links *LinkManager, maxRetries int, logger *zap.Logger) *SearchRequestService {
	return &SearchRequestService{DB: db, Links: links, MaxRetries: maxRetries, Logger: logger}
}

// Enqueue legt einen Suchauftrag an. Die Datenquelle muss mit dem Protokoll verknüpft sein.
func (s *SearchRequestService) Enqueue(ctx context.Context, protocolID, dataSourceID uint, query string) (*models.SearchJob, error) {
	ctx, cid := correlation.Ensure(ctx)
	job := &models.SearchJob{
		CorrelationID: cid,
		ProtocolID:    protocolID,
		DataSourceID:  dataSourceID,
		Query:         query,
		Status:        models.SearchJobPending,
		MaxRetries:    s.MaxRetries,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Protocol{}, "protocol", protocolID); err != nil {
			return err
		}
		if err := exists(tx, &models.DataSource{}, "data source", dataSourceID); err != nil {
			return err
		}
		linked, err := s.Links.Linked(tx, RelationDataSource, protocolID, dataSourceID)
		if err != nil {
			return err
		}
		if !linked {
			return apperr.InvalidInput("data source %d is not linked to protocol %d", dataSourceID, protocolID)
		}
		if err := tx.Create(job).Error; err != nil {
			return apperr.Internal(err, "enqueue search job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Search job enqueued",
		zap.Uint("job_id", job.ID),
		zap.Uint("protocol_id", protocolID),
		zap.Uint("data_source_id", dataSourceID),
		zap.String("correlation_id", cid))
	return job, nil
}

// Get lädt einen Suchauftrag.
func (s *SearchRequestService) Get(ctx context.Context, id uint) (*models.SearchJob, error) {
	var job models.SearchJob
	if err := s.DB.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, loadErr(err, "search job", id)
	}
	return &job, nil
}
