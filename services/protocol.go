package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// ProtocolInput enthält die skalaren Felder eines Protokolls.
type ProtocolInput struct {
	PrincipalQuestion string   `json:"principal_question" validate:"required"`
	SecondaryQuestion string   `json:"secondary_question"`
	Languages         []string `json:"languages" validate:"dive,required"`
}

// FormFieldInput beschreibt ein Feld beim Anlegen eines Formulars.
type FormFieldInput struct {
	Name      string                `json:"name" validate:"required,max=255"`
	ValueType models.FieldValueType `json:"value_type" validate:"required,oneof=TEXT NUMBER BOOLEAN DATE OPTION"`
}

// teardownRelations ist die Reihenfolge, in der ein Protokoll von seinen Beziehungen gelöst wird.
var teardownRelations = []Relation{RelationSelectionCriteria, RelationKeyword, RelationDataSource}

// ProtocolService besitzt das Protokoll-Aggregat.
type ProtocolService struct {
	DB          *gorm.DB
	Links       *LinkManager
	DataSources *DataSourceRegistry
	Cascade     *CascadeOrchestrator
	Logger      *zap.Logger
}

// NewProtocolService erstellt eine neue Instanz des ProtocolService.
func NewProtocolService(db *gorm.DB, links *LinkManager, dataSources *DataSourceRegistry, cascade *CascadeOrchestrator, logger *zap.Logger) *ProtocolService {
	return &ProtocolService{DB: db, Links: links, DataSources: dataSources, Cascade: cascade, Logger: logger}
}

// Create legt das Protokoll eines SLR an. Ein SLR hat höchstens ein Protokoll.
func (s *ProtocolService) Create(ctx context.Context, slrID uint, in ProtocolInput) (*models.Protocol, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p := &models.Protocol{
		SLRID:             slrID,
		PrincipalQuestion: in.PrincipalQuestion,
		SecondaryQuestion: in.SecondaryQuestion,
		Languages:         in.Languages,
	}
	if p.Languages == nil {
		p.Languages = []string{}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.SLR{}, "slr", slrID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Protocol{}).Where("slr_id = ?", slrID).Count(&count).Error; err != nil {
			return apperr.Internal(err, "check protocol of slr %d", slrID)
		}
		if count > 0 {
			return apperr.AlreadyExists("slr %d already has a protocol", slrID)
		}
		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.AlreadyExists("slr %d already has a protocol", slrID)
			}
			return apperr.Internal(err, "create protocol")
		}
		return tx.Model(&models.SLR{}).Where("id = ?", slrID).
			UpdateColumn("updated_at", s.Links.Now()).Error
	})
	if err != nil {
		return nil, dbErr(err, "create protocol for slr %d", slrID)
	}

	p.Keywords = []models.Keyword{}
	p.SelectionCriteria = []models.SelectionCriteria{}
	p.DataSources = []models.DataSource{}
	s.Logger.Info("Protocol created", zap.Uint("protocol_id", p.ID), zap.Uint("slr_id", slrID))
	return p, nil
}

// Update ersetzt die skalaren Felder. Verknüpfungen bleiben unverändert.
func (s *ProtocolService) Update(ctx context.Context, id uint, in ProtocolInput) (*models.Protocol, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Languages == nil {
		in.Languages = []string{}
	}

	var p models.Protocol
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return loadErr(err, "protocol", id)
		}
		p.PrincipalQuestion = in.PrincipalQuestion
		p.SecondaryQuestion = in.SecondaryQuestion
		p.Languages = in.Languages
		if err := tx.Save(&p).Error; err != nil {
			return apperr.Internal(err, "update protocol %d", id)
		}
		return s.view(tx, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get lädt das Protokoll mit allen Verknüpfungen und Formularen.
func (s *ProtocolService) Get(ctx context.Context, id uint) (*models.Protocol, error) {
	db := s.DB.WithContext(ctx)
	var p models.Protocol
	if err := db.First(&p, id).Error; err != nil {
		return nil, loadErr(err, "protocol", id)
	}
	if err := s.view(db, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBySLR lädt das Protokoll eines SLR oder liefert nil, wenn es keines gibt.
func (s *ProtocolService) GetBySLR(ctx context.Context, slrID uint) (*models.Protocol, error) {
	return s.loadBySLR(s.DB.WithContext(ctx), slrID)
}

func (s *ProtocolService) loadBySLR(tx *gorm.DB, slrID uint) (*models.Protocol, error) {
	var protocols []models.Protocol
	if err := tx.Where("slr_id = ?", slrID).Limit(1).Find(&protocols).Error; err != nil {
		return nil, apperr.Internal(err, "load protocol of slr %d", slrID)
	}
	if len(protocols) == 0 {
		return nil, nil
	}
	p := &protocols[0]
	if err := s.view(tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// view füllt die Lese-Sichten eines geladenen Protokolls.
func (s *ProtocolService) view(tx *gorm.DB, p *models.Protocol) error {
	var err error
	if p.Keywords, err = loadLinkedKeywords(tx, p.ID); err != nil {
		return err
	}
	if p.SelectionCriteria, err = loadLinkedCriteria(tx, p.ID); err != nil {
		return err
	}
	if p.DataSources, err = s.DataSources.loadLinked(tx, p.ID); err != nil {
		return err
	}
	forms, err := loadForms(tx, p.ID)
	if err != nil {
		return err
	}
	for i := range forms {
		switch forms[i].Role {
		case models.FormExtraction:
			p.ExtractionForm = &forms[i]
		case models.FormQuality:
			p.QualityForm = &forms[i]
		}
	}
	if p.Languages == nil {
		p.Languages = []string{}
	}
	return nil
}

// Delete löst das Protokoll von allen Beziehungen, löscht seine Formulare und
// zuletzt die Formular-Instanzen im Search-Service. Jeder Fehler rollt alles zurück.
func (s *ProtocolService) Delete(ctx context.Context, id uint) error {
	return s.Cascade.Run(ctx, s.DB, "protocol", id, func(tx *gorm.DB, plan *deletionPlan) error {
		var p models.Protocol
		if err := tx.First(&p, id).Error; err != nil {
			return loadErr(err, "protocol", id)
		}
		return s.teardown(tx, &p, plan)
	})
}

// teardown führt die lokalen Schritte einer Protokoll-Löschung aus und merkt die
// Formulare für die Remote-Löschung vor. Keine Beziehungsart wird übersprungen.
func (s *ProtocolService) teardown(tx *gorm.DB, p *models.Protocol, plan *deletionPlan) error {
	for _, rel := range teardownRelations {
		if _, err := s.Links.DetachOwner(tx, rel, p.ID); err != nil {
			return err
		}
	}

	var forms []models.Form
	if err := tx.Where("protocol_id = ?", p.ID).Order("id").Find(&forms).Error; err != nil {
		return apperr.Internal(err, "load forms of protocol %d", p.ID)
	}
	for _, f := range forms {
		if err := deleteFormRows(tx, f.ID); err != nil {
			return err
		}
		plan.addForm(f.ID)
	}

	if err := tx.Where("protocol_id = ?", p.ID).Delete(&models.SearchJob{}).Error; err != nil {
		return apperr.Internal(err, "delete search jobs of protocol %d", p.ID)
	}
	if err := tx.Delete(&models.Protocol{}, p.ID).Error; err != nil {
		return apperr.Internal(err, "delete protocol %d", p.ID)
	}

	s.Logger.Debug("Protocol torn down",
		zap.Uint("protocol_id", p.ID),
		zap.Uint("slr_id", p.SLRID),
		zap.Int("forms", len(forms)))
	return nil
}

// AddForm legt das Formular einer Rolle samt Feldern an. Ist die Rolle belegt,
// bleibt das vorhandene Formular unverändert.
func (s *ProtocolService) AddForm(ctx context.Context, protocolID uint, role models.FormRole, fields []FormFieldInput) (*models.Form, error) {
	if role != models.FormExtraction && role != models.FormQuality {
		return nil, apperr.InvalidInput("unknown form role %q", role)
	}
	for _, f := range fields {
		if err := validateInput(f); err != nil {
			return nil, err
		}
	}

	form := &models.Form{ProtocolID: protocolID, Role: role}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Protocol{}, "protocol", protocolID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Form{}).Where("protocol_id = ? AND role = ?", protocolID, role).Count(&count).Error; err != nil {
			return apperr.Internal(err, "check %s form of protocol %d", role, protocolID)
		}
		if count > 0 {
			return apperr.AlreadyExists("protocol %d already has a %s form", protocolID, role)
		}
		if err := tx.Create(form).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.AlreadyExists("protocol %d already has a %s form", protocolID, role)
			}
			return apperr.Internal(err, "create %s form", role)
		}

		form.Fields = make([]models.FormField, 0, len(fields))
		for i, f := range fields {
			form.Fields = append(form.Fields, models.FormField{
				FormID:    form.ID,
				Position:  i + 1,
				Name:      f.Name,
				ValueType: f.ValueType,
			})
		}
		if len(form.Fields) > 0 {
			if err := tx.Create(&form.Fields).Error; err != nil {
				return apperr.Internal(err, "create fields of form %d", form.ID)
			}
		}
		return tx.Model(&models.Protocol{}).Where("id = ?", protocolID).
			UpdateColumn("updated_at", s.Links.Now()).Error
	})
	if err != nil {
		return nil, dbErr(err, "add %s form to protocol %d", role, protocolID)
	}

	s.Logger.Info("Form added",
		zap.Uint("form_id", form.ID),
		zap.Uint("protocol_id", protocolID),
		zap.String("role", string(role)),
		zap.Int("fields", len(form.Fields)))
	return form, nil
}

// AddFormField hängt ein Feld an das Ende des Formulars an.
func (s *ProtocolService) AddFormField(ctx context.Context, formID uint, in FormFieldInput) (*models.FormField, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	field := &models.FormField{FormID: formID, Name: in.Name, ValueType: in.ValueType}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Form{}, "form", formID); err != nil {
			return err
		}
		var last int
		if err := tx.Model(&models.FormField{}).Where("form_id = ?", formID).
			Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return apperr.Internal(err, "read field positions of form %d", formID)
		}
		field.Position = last + 1
		if err := tx.Create(field).Error; err != nil {
			return apperr.Internal(err, "create field of form %d", formID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return field, nil
}

// DeleteForm löscht ein Formular samt Feldern und dessen Instanzen im Search-Service.
func (s *ProtocolService) DeleteForm(ctx context.Context, formID uint) error {
	return s.Cascade.Run(ctx, s.DB, "form", formID, func(tx *gorm.DB, plan *deletionPlan) error {
		var form models.Form
		if err := tx.First(&form, formID).Error; err != nil {
			return loadErr(err, "form", formID)
		}
		if err := deleteFormRows(tx, formID); err != nil {
			return err
		}
		plan.addForm(formID)
		return tx.Model(&models.Protocol{}).Where("id = ?", form.ProtocolID).
			UpdateColumn("updated_at", s.Links.Now()).Error
	})
}

// SelectionCriteriaOf liefert die Kriterien eines Protokolls für den Search-Service.
func (s *ProtocolService) SelectionCriteriaOf(ctx context.Context, protocolID uint) ([]models.SelectionCriteria, error) {
	db := s.DB.WithContext(ctx)
	if err := exists(db, &models.Protocol{}, "protocol", protocolID); err != nil {
		return nil, err
	}
	return loadLinkedCriteria(db, protocolID)
}

// FormData liefert das Formular einer Rolle mit geordneten Feldern.
func (s *ProtocolService) FormData(ctx context.Context, protocolID uint, role models.FormRole) (*models.Form, error) {
	db := s.DB.WithContext(ctx)
	if err := exists(db, &models.Protocol{}, "protocol", protocolID); err != nil {
		return nil, err
	}
	var form models.Form
	err := db.Where("protocol_id = ? AND role = ?", protocolID, role).First(&form).Error
	if err != nil {
		return nil, loadErr(err, string(role)+" form of protocol", protocolID)
	}
	if form.Fields, err = loadFields(db, form.ID); err != nil {
		return nil, err
	}
	return &form, nil
}

func deleteFormRows(tx *gorm.DB, formID uint) error {
	if err := tx.Where("form_id = ?", formID).Delete(&models.FormField{}).Error; err != nil {
		return apperr.Internal(err, "delete fields of form %d", formID)
	}
	if err := tx.Delete(&models.Form{}, formID).Error; err != nil {
		return apperr.Internal(err, "delete form %d", formID)
	}
	return nil
}

func loadForms(tx *gorm.DB, protocolID uint) ([]models.Form, error) {
	var forms []models.Form
	if err := tx.Where("protocol_id = ?", protocolID).Order("id").Find(&forms).Error; err != nil {
		return nil, apperr.Internal(err, "load forms of protocol %d", protocolID)
	}
	for i := range forms {
		fields, err := loadFields(tx, forms[i].ID)
		if err != nil {
			return nil, err
		}
		forms[i].Fields = fields
	}
	return forms, nil
}

func loadFields(tx *gorm.DB, formID uint) ([]models.FormField, error) {
	fields := make([]models.FormField, 0)
	if err := tx.Where("form_id = ?", formID).Order("position").Find(&fields).Error; err != nil {
		return nil, apperr.Internal(err, "load fields of form %d", formID)
	}
	return fields, nil
}
