package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
	"slr-manager/providers"
)

// FormInstanceService materialisiert Formulare des Review-Service je Studie.
type FormInstanceService struct {
	DB     *gorm.DB
	Review providers.ReviewService
	Logger *zap.Logger
}

// NewFormInstanceService erstellt eine neue Instanz des FormInstanceService.
func NewFormInstanceService(db *gorm.DB, review providers.ReviewService, logger *zap.Logger) *FormInstanceService {
	return &FormInstanceService{DB: db, Review: review, Logger: logger}
}

// Instantiate holt das Formular der Rolle vom Review-Service und legt eine Instanz
// für die Studie an. Pro Studie und Rolle gibt es höchstens eine Instanz.
func (s *FormInstanceService) Instantiate(ctx context.Context, studyID uint, role models.FormRole) (*models.FormInstance, error) {
	db := s.DB.WithContext(ctx)
	var study models.Study
	if err := db.First(&study, studyID).Error; err != nil {
		return nil, loadErr(err, "study", studyID)
	}
	var search models.Search
	if err := db.First(&search, study.SearchID).Error; err != nil {
		return nil, loadErr(err, "search", study.SearchID)
	}
	if err := s.checkFree(db, studyID, role); err != nil {
		return nil, err
	}

	form, err := s.Review.FormData(ctx, search.ProtocolID, role)
	if err != nil {
		return nil, err
	}

	instance := &models.FormInstance{StudyID: studyID, Role: role, FormID: form.ID}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.checkFree(tx, studyID, role); err != nil {
			return err
		}
		if err := tx.Omit("Fields").Create(instance).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.AlreadyExists("study %d already has a %s form instance", studyID, role)
			}
			return apperr.Internal(err, "create form instance")
		}
		instance.Fields = make([]models.FormFieldInstance, 0, len(form.Fields))
		for _, f := range form.Fields {
			instance.Fields = append(instance.Fields, models.FormFieldInstance{
				FormInstanceID: instance.ID,
				FormFieldID:    f.ID,
				Position:       f.Position,
				Name:           f.Name,
				ValueType:      f.ValueType,
			})
		}
		if len(instance.Fields) > 0 {
			if err := tx.Create(&instance.Fields).Error; err != nil {
				return apperr.Internal(err, "create field instances of form instance %d", instance.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Form instance created",
		zap.Uint("form_instance_id", instance.ID),
		zap.Uint("study_id", studyID),
		zap.Uint("form_id", form.ID),
		zap.String("role", string(role)))
	return instance, nil
}

func (s *FormInstanceService) checkFree(tx *gorm.DB, studyID uint, role models.FormRole) error {
	var count int64
	if err := tx.Model(&models.FormInstance{}).Where("study_id = ? AND role = ?", studyID, role).Count(&count).Error; err != nil {
		return apperr.Internal(err, "check %s form instance of study %d", role, studyID)
	}
	if count > 0 {
		return apperr.AlreadyExists("study %d already has a %s form instance", studyID, role)
	}
	return nil
}

// SetFieldValue setzt den Wert eines Feldes. Der Wert muss zum deklarierten Typ passen.
func (s *FormInstanceService) SetFieldValue(ctx context.Context, fieldInstanceID uint, value string) (*models.FormFieldInstance, error) {
	db := s.DB.WithContext(ctx)
	var field models.FormFieldInstance
	if err := db.First(&field, fieldInstanceID).Error; err != nil {
		return nil, loadErr(err, "form field instance", fieldInstanceID)
	}
	if err := checkValue(field.ValueType, value); err != nil {
		return nil, err
	}
	if err := db.Model(&field).Update("value", value).Error; err != nil {
		return nil, apperr.Internal(err, "set value of field instance %d", fieldInstanceID)
	}
	field.Value = value
	return &field, nil
}

func checkValue(t models.FieldValueType, value string) error {
	if value == "" {
		return nil
	}
	var err error
	switch t {
	case models.FieldNumber:
		_, err = strconv.ParseFloat(value, 64)
	case models.FieldBoolean:
		_, err = strconv.ParseBool(value)
	case models.FieldDate:
		_, err = time.Parse(time.DateOnly, value)
	}
	if err != nil {
		return apperr.InvalidInput("value %q is not a valid %s", value, t)
	}
	return nil
}

// FullDelete löscht alle Instanzen eines Formulars samt Feldwerten. Gibt es keine,
// ist das kein Fehler; zurückgegeben wird die Anzahl gelöschter Instanzen.
func (s *FormInstanceService) FullDelete(ctx context.Context, formID uint) (int64, error) {
	var deleted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instanceIDs := tx.Model(&models.FormInstance{}).Select("id").Where("form_id = ?", formID)
		if err := tx.Where("form_instance_id IN (?)", instanceIDs).Delete(&models.FormFieldInstance{}).Error; err != nil {
			return err
		}
		res := tx.Where("form_id = ?", formID).Delete(&models.FormInstance{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperr.Internal(err, "delete instances of form %d", formID)
	}
	s.Logger.Info("Form instances deleted", zap.Uint("form_id", formID), zap.Int64("deleted", deleted))
	return deleted, nil
}
