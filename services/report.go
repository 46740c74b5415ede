package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// ReportUploader legt den exportierten Bericht in einem Objektspeicher ab.
type ReportUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ReportInput ist Titel und Inhalt eines Abschlussberichts.
type ReportInput struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
}

// ReportService verwaltet den Abschlussbericht eines Reviews.
type ReportService struct {
	DB       *gorm.DB
	Uploader ReportUploader
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewReportService erstellt eine neue Instanz des ReportService. uploader darf nil sein;
// dann ist Export nicht verfügbar.
func NewReportService(db *gorm.DB, uploader ReportUploader, logger *zap.Logger) *ReportService {
	return &ReportService{DB: db, Uploader: uploader, Logger: logger, Now: time.Now}
}

// Save legt den Bericht an oder ersetzt Titel und Inhalt.
func (s *ReportService) Save(ctx context.Context, slrID uint, in ReportInput) (*models.Report, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var report models.Report
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.SLR{}, "slr", slrID); err != nil {
			return err
		}
		if err := tx.Where("slr_id = ?", slrID).Limit(1).Find(&report).Error; err != nil {
			return apperr.Internal(err, "load report of slr %d", slrID)
		}
		report.SLRID = slrID
		report.Title = in.Title
		report.Content = in.Content
		if err := tx.Save(&report).Error; err != nil {
			return apperr.Internal(err, "save report of slr %d", slrID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Get lädt den Bericht eines Reviews.
func (s *ReportService) Get(ctx context.Context, slrID uint) (*models.Report, error) {
	var report models.Report
	if err := s.DB.WithContext(ctx).Where("slr_id = ?", slrID).First(&report).Error; err != nil {
		return nil, loadErr(err, "report of slr", slrID)
	}
	return &report, nil
}

// Export lädt den Bericht als Markdown hoch und speichert den Link.
func (s *ReportService) Export(ctx context.Context, slrID uint) (*models.Report, error) {
	if s.Uploader == nil {
		return nil, apperr.Internal(nil, "report export is not configured")
	}
	report, err := s.Get(ctx, slrID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	key := fmt.Sprintf("reports/slr-%d/report-%s.md", slrID, now.Format("20060102-150405"))
	body := fmt.Sprintf("# %s\n\n%s\n", report.Title, report.Content)
	link, err := s.Uploader.Upload(ctx, key, []byte(body), "text/markdown")
	if err != nil {
		s.Logger.Error("Report upload failed", zap.Uint("slr_id", slrID), zap.String("key", key), zap.Error(err))
		return nil, apperr.RemoteUnavailable(err, "upload report of slr %d", slrID)
	}

	err = s.DB.WithContext(ctx).Model(report).Updates(map[string]any{"s3_link": link, "exported_at": now}).Error
	if err != nil {
		return nil, apperr.Internal(err, "store export link of report %d", report.ID)
	}
	report.S3Link = link
	report.ExportedAt = &now
	s.Logger.Info("Report exported", zap.Uint("slr_id", slrID), zap.String("link", link))
	return report, nil
}
