package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"slr-manager/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput prüft die validate-Tags einer Eingabe und liefert InvalidInput mit allen Feldern.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidInput("invalid input: %v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return apperr.InvalidInput("invalid input: %s", strings.Join(parts, ", "))
}

// loadErr übersetzt gorm.ErrRecordNotFound in NotFound und alles andere in Internal.
func loadErr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource, id)
	}
	return apperr.Internal(err, "load %s %v", resource, id)
}

// dbErr reicht klassifizierte Fehler durch und verpackt den Rest als Internal.
func dbErr(err error, format string, args ...any) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(err, format, args...)
}

// exists prüft per COUNT, ob eine Zeile mit der ID existiert.
func exists(tx *gorm.DB, model any, resource string, id uint) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperr.Internal(err, "check %s %d", resource, id)
	}
	if count == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}
