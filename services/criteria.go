package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// CriteriaInput ist Text und Typ eines Auswahlkriteriums.
type CriteriaInput struct {
	Text string              `json:"text" validate:"required"`
	Type models.CriteriaType `json:"type" validate:"required,oneof=INCLUSION EXCLUSION"`
}

// SelectionCriteriaService verwaltet Ein- und Ausschlusskriterien.
type SelectionCriteriaService struct {
	DB     *gorm.DB
	Links  *LinkManager
	Logger *zap.Logger
}

// NewSelectionCriteriaService erstellt eine neue Instanz des SelectionCriteriaService.
func NewSelectionCriteriaService(db *gorm.DB, links *LinkManager, logger *zap.Logger) *SelectionCriteriaService {
	return &SelectionCriteriaService{DB: db, Links: links, Logger: logger}
}

// CreateAndLink legt ein Kriterium an und verknüpft es mit dem Protokoll.
// Kriterien werden nicht dedupliziert; gleicher Text ergibt eine neue Zeile.
func (s *SelectionCriteriaService) CreateAndLink(ctx context.Context, protocolID uint, in CriteriaInput) (*models.SelectionCriteria, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	criteria := models.SelectionCriteria{Text: in.Text, Type: in.Type}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Protocol{}, "protocol", protocolID); err != nil {
			return err
		}
		if err := tx.Create(&criteria).Error; err != nil {
			return apperr.Internal(err, "create selection criteria")
		}
		return s.Links.Link(tx, RelationSelectionCriteria, protocolID, criteria.ID)
	})
	if err != nil {
		return nil, err
	}

	criteria.ProtocolIDs = []uint{protocolID}
	s.Logger.Info("Selection criteria created",
		zap.Uint("criteria_id", criteria.ID),
		zap.String("type", string(criteria.Type)),
		zap.Uint("protocol_id", protocolID))
	return &criteria, nil
}

// Link verknüpft ein vorhandenes Kriterium mit einem weiteren Protokoll.
func (s *SelectionCriteriaService) Link(ctx context.Context, protocolID, criteriaID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Links.Link(tx, RelationSelectionCriteria, protocolID, criteriaID)
	})
}

// Get lädt ein Kriterium samt verknüpften Protokollen.
func (s *SelectionCriteriaService) Get(ctx context.Context, id uint) (*models.SelectionCriteria, error) {
	db := s.DB.WithContext(ctx)
	var criteria models.SelectionCriteria
	if err := db.First(&criteria, id).Error; err != nil {
		return nil, loadErr(err, "selection criteria", id)
	}
	owners, err := s.Links.OwnerIDs(db, RelationSelectionCriteria, id)
	if err != nil {
		return nil, err
	}
	criteria.ProtocolIDs = owners
	return &criteria, nil
}

// Update ersetzt Text und Typ.
func (s *SelectionCriteriaService) Update(ctx context.Context, id uint, in CriteriaInput) (*models.SelectionCriteria, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	var criteria models.SelectionCriteria
	if err := db.First(&criteria, id).Error; err != nil {
		return nil, loadErr(err, "selection criteria", id)
	}
	err := db.Model(&criteria).Updates(map[string]any{"text": in.Text, "type": in.Type}).Error
	if err != nil {
		return nil, apperr.Internal(err, "update selection criteria %d", id)
	}
	criteria.Text, criteria.Type = in.Text, in.Type
	return &criteria, nil
}

// Unlink löst ein Kriterium von einem Protokoll.
func (s *SelectionCriteriaService) Unlink(ctx context.Context, protocolID, criteriaID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Links.Unlink(tx, RelationSelectionCriteria, protocolID, criteriaID)
	})
}

// Delete löst das Kriterium von allen Protokollen und löscht es.
func (s *SelectionCriteriaService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var criteria models.SelectionCriteria
		if err := tx.First(&criteria, id).Error; err != nil {
			return loadErr(err, "selection criteria", id)
		}
		if _, err := s.Links.DetachTarget(tx, RelationSelectionCriteria, id); err != nil {
			return err
		}
		if err := tx.Delete(&criteria).Error; err != nil {
			return apperr.Internal(err, "delete selection criteria %d", id)
		}
		return nil
	})
}

// loadLinkedCriteria lädt die Kriterien eines Protokolls.
func loadLinkedCriteria(tx *gorm.DB, protocolID uint) ([]models.SelectionCriteria, error) {
	criteria := make([]models.SelectionCriteria, 0)
	err := tx.Joins("JOIN protocol_selection_criteria psc ON psc.selection_criteria_id = selection_criteria.id").
		Where("psc.protocol_id = ?", protocolID).
		Order("selection_criteria.id").
		Find(&criteria).Error
	if err != nil {
		return nil, apperr.Internal(err, "load selection criteria of protocol %d", protocolID)
	}
	return criteria, nil
}
