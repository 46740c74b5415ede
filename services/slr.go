package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// SLRInput enthält die skalaren Felder eines Reviews. Public ist optional und
// steht beim Anlegen ohne Angabe auf true.
type SLRInput struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	EndDate     *time.Time `json:"end_date"`
	WorkField   string     `json:"work_field" validate:"max=255"`
	Objective   string     `json:"objective"`
	Public      *bool      `json:"public"`
}

// ResearcherInput beschreibt einen Mitwirkenden.
type ResearcherInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

// SLRService besitzt das SLR-Aggregat: Protokoll, Bericht und Mitgliedschaften.
type SLRService struct {
	DB        *gorm.DB
	Links     *LinkManager
	Protocols *ProtocolService
	Cascade   *CascadeOrchestrator
	Logger    *zap.Logger
}

// NewSLRService erstellt eine neue Instanz des SLRService.
func NewSLRService(db *gorm.DB, links *LinkManager, protocols *ProtocolService, cascade *CascadeOrchestrator, logger *zap.Logger) *SLRService {
	return &SLRService{DB: db, Links: links, Protocols: protocols, Cascade: cascade, Logger: logger}
}

// Create legt ein Review mit seinem Hauptverantwortlichen an. Der Researcher muss
// existieren und die Rolle PRINCIPAL haben.
func (s *SLRService) Create(ctx context.Context, in SLRInput, principalResearcherID uint) (*models.SLR, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slr := &models.SLR{
		Title:       in.Title,
		Description: in.Description,
		StartDate:   s.Links.Now(),
		EndDate:     in.EndDate,
		WorkField:   in.WorkField,
		Objective:   in.Objective,
		Public:      true,
	}
	if in.Public != nil {
		slr.Public = *in.Public
	}

	var principal models.Researcher
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&principal, principalResearcherID).Error; err != nil {
			return loadErr(err, "researcher", principalResearcherID)
		}
		if principal.Role != models.ResearcherPrincipal {
			return apperr.InvalidInput("researcher %d is not a principal researcher", principalResearcherID)
		}
		if err := tx.Create(slr).Error; err != nil {
			return apperr.Internal(err, "create slr")
		}
		return s.Links.Link(tx, RelationResearcher, slr.ID, principal.ID)
	})
	if err != nil {
		return nil, err
	}

	slr.Researchers = []models.Researcher{principal}
	s.Logger.Info("SLR created",
		zap.Uint("slr_id", slr.ID),
		zap.Uint("principal_researcher_id", principal.ID))
	return slr, nil
}

// Get lädt ein Review mit Protokoll, Bericht und Researchern.
func (s *SLRService) Get(ctx context.Context, id uint) (*models.SLR, error) {
	db := s.DB.WithContext(ctx)
	var slr models.SLR
	if err := db.First(&slr, id).Error; err != nil {
		return nil, loadErr(err, "slr", id)
	}
	if err := s.view(db, &slr); err != nil {
		return nil, err
	}
	return &slr, nil
}

func (s *SLRService) view(tx *gorm.DB, slr *models.SLR) error {
	p, err := s.Protocols.loadBySLR(tx, slr.ID)
	if err != nil {
		return err
	}
	slr.Protocol = p

	var reports []models.Report
	if err := tx.Where("slr_id = ?", slr.ID).Limit(1).Find(&reports).Error; err != nil {
		return apperr.Internal(err, "load report of slr %d", slr.ID)
	}
	if len(reports) > 0 {
		slr.Report = &reports[0]
	}

	slr.Researchers = make([]models.Researcher, 0)
	err = tx.Joins("JOIN slr_researchers sr ON sr.researcher_id = researchers.id").
		Where("sr.slr_id = ?", slr.ID).
		Order("researchers.id").
		Find(&slr.Researchers).Error
	if err != nil {
		return apperr.Internal(err, "load researchers of slr %d", slr.ID)
	}
	return nil
}

// Update ersetzt die skalaren Felder.
func (s *SLRService) Update(ctx context.Context, id uint, in SLRInput) (*models.SLR, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var slr models.SLR
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&slr, id).Error; err != nil {
			return loadErr(err, "slr", id)
		}
		slr.Title = in.Title
		slr.Description = in.Description
		slr.EndDate = in.EndDate
		slr.WorkField = in.WorkField
		slr.Objective = in.Objective
		if in.Public != nil {
			slr.Public = *in.Public
		}
		if err := tx.Save(&slr).Error; err != nil {
			return apperr.Internal(err, "update slr %d", id)
		}
		return s.view(tx, &slr)
	})
	if err != nil {
		return nil, err
	}
	return &slr, nil
}

// Delete entfernt ein Review samt Protokoll, Formularen, Bericht und Mitgliedschaften.
// Ein unbekanntes Review liefert NotFound; jeder andere Fehler wird zu CannotDelete,
// die Ursache bleibt in der Kette. Nach einem Fehler ist das Review unverändert.
func (s *SLRService) Delete(ctx context.Context, id uint) error {
	missing := false
	err := s.Cascade.Run(ctx, s.DB, "slr", id, func(tx *gorm.DB, plan *deletionPlan) error {
		var slr models.SLR
		if err := tx.First(&slr, id).Error; err != nil {
			err = loadErr(err, "slr", id)
			missing = apperr.KindOf(err) == apperr.KindNotFound
			return err
		}

		var protocols []models.Protocol
		if err := tx.Where("slr_id = ?", id).Find(&protocols).Error; err != nil {
			return apperr.Internal(err, "load protocol of slr %d", id)
		}
		for i := range protocols {
			if err := s.Protocols.teardown(tx, &protocols[i], plan); err != nil {
				return err
			}
		}

		if err := tx.Where("slr_id = ?", id).Delete(&models.Report{}).Error; err != nil {
			return apperr.Internal(err, "delete report of slr %d", id)
		}
		if _, err := s.Links.DetachOwner(tx, RelationResearcher, id); err != nil {
			return err
		}
		if err := tx.Delete(&slr).Error; err != nil {
			return apperr.Internal(err, "delete slr %d", id)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if missing {
		return err
	}
	s.Logger.Warn("SLR deletion failed", zap.Uint("slr_id", id), zap.Error(err))
	return apperr.CannotDelete("slr", id, err)
}

// AddResearcher legt einen Mitwirkenden für einen externen User an und verknüpft ihn mit dem Review.
func (s *SLRService) AddResearcher(ctx context.Context, slrID uint, in ResearcherInput, userID uint) (*models.Researcher, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, apperr.InvalidInput("user id is required")
	}
	r := &models.Researcher{Name: in.Name, Role: models.ResearcherCollaborator, UserID: userID}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.SLR{}, "slr", slrID); err != nil {
			return err
		}
		if err := tx.Create(r).Error; err != nil {
			return apperr.Internal(err, "create researcher")
		}
		return s.Links.Link(tx, RelationResearcher, slrID, r.ID)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Researcher added",
		zap.Uint("slr_id", slrID),
		zap.Uint("researcher_id", r.ID),
		zap.Uint("user_id", userID))
	return r, nil
}

// RemoveResearcher löst einen Mitwirkenden vom Review. Der Hauptverantwortliche bleibt.
func (s *SLRService) RemoveResearcher(ctx context.Context, slrID, researcherID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.SLR{}, "slr", slrID); err != nil {
			return err
		}
		var r models.Researcher
		if err := tx.First(&r, researcherID).Error; err != nil {
			return loadErr(err, "researcher", researcherID)
		}
		if r.Role == models.ResearcherPrincipal {
			return apperr.InvalidInput("principal researcher %d cannot be removed from slr %d", researcherID, slrID)
		}
		return s.Links.Unlink(tx, RelationResearcher, slrID, researcherID)
	})
}

// FindByResearcherUserID liefert alle Reviews, an denen ein externer User über
// irgendeine seiner Researcher-Zeilen beteiligt ist, ohne Duplikate und nach ID sortiert.
func (s *SLRService) FindByResearcherUserID(ctx context.Context, userID uint) ([]models.SLR, error) {
	db := s.DB.WithContext(ctx)
	researcherIDs := db.Model(&models.Researcher{}).Select("id").Where("user_id = ?", userID)
	slrIDs := db.Model(&models.SLRResearcher{}).Select("slr_id").Where("researcher_id IN (?)", researcherIDs)

	slrs := make([]models.SLR, 0)
	if err := db.Where("id IN (?)", slrIDs).Order("id").Find(&slrs).Error; err != nil {
		return nil, apperr.Internal(err, "find slrs of user %d", userID)
	}
	return slrs, nil
}
