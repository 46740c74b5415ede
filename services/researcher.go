package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// RegisterResearcherInput kommt von der externen Benutzerverwaltung.
type RegisterResearcherInput struct {
	Name   string `json:"name" validate:"required,max=255"`
	UserID uint   `json:"user_id" validate:"required"`
}

// ResearcherService legt Hauptverantwortliche für externe User an.
type ResearcherService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewResearcherService erstellt eine neue Instanz des ResearcherService.
func NewResearcherService(db *gorm.DB, logger *zap.Logger) *ResearcherService {
	return &ResearcherService{DB: db, Logger: logger}
}

// Register legt eine PRINCIPAL-Zeile für einen externen User an.
func (s *ResearcherService) Register(ctx context.Context, in RegisterResearcherInput) (*models.Researcher, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	r := &models.Researcher{Name: in.Name, Role: models.ResearcherPrincipal, UserID: in.UserID}
	if err := s.DB.WithContext(ctx).Create(r).Error; err != nil {
		return nil, apperr.Internal(err, "register researcher for user %d", in.UserID)
	}
	s.Logger.Info("Researcher registered", zap.Uint("researcher_id", r.ID), zap.Uint("user_id", in.UserID))
	return r, nil
}

// Get lädt einen Researcher.
func (s *ResearcherService) Get(ctx context.Context, id uint) (*models.Researcher, error) {
	var r models.Researcher
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, loadErr(err, "researcher", id)
	}
	return &r, nil
}
