package models

import (
	"strings"
	"time"
)

// FormRole bestimmt den Slot eines Formulars im Protokoll.
type FormRole string

const (
	FormExtraction FormRole = "EXTRACTION"
	FormQuality    FormRole = "QUALITY"
)

// ParseFormRole akzeptiert "extraction"/"quality" in beliebiger Schreibweise.
func ParseFormRole(s string) (FormRole, bool) {
	switch FormRole(strings.ToUpper(strings.TrimSpace(s))) {
	case FormExtraction:
		return FormExtraction, true
	case FormQuality:
		return FormQuality, true
	}
	return "", false
}

// FieldValueType ist der deklarierte Typ eines Formularfelds.
type FieldValueType string

const (
	FieldText    FieldValueType = "TEXT"
	FieldNumber  FieldValueType = "NUMBER"
	FieldBoolean FieldValueType = "BOOLEAN"
	FieldDate    FieldValueType = "DATE"
	FieldOption  FieldValueType = "OPTION"
)

// Valid meldet, ob t ein bekannter Feldtyp ist.
func (t FieldValueType) Valid() bool {
	switch t {
	case FieldText, FieldNumber, FieldBoolean, FieldDate, FieldOption:
		return true
	}
	return false
}

// Form ist eine Extraktions- oder Qualitätsvorlage. Pro Protokoll und Rolle gibt es höchstens eine.
type Form struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	ProtocolID uint      `json:"protocol_id" gorm:"uniqueIndex:idx_forms_protocol_role;not null"`
	Role       FormRole  `json:"role" gorm:"size:16;uniqueIndex:idx_forms_protocol_role;not null"`

	Fields []FormField `json:"fields" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Form) TableName() string {
	return "forms"
}

// FormField gehört genau einem Formular und wird mit ihm gelöscht.
type FormField struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	FormID    uint           `json:"form_id" gorm:"index;not null"`
	Position  int            `json:"position" gorm:"not null"`
	Name      string         `json:"name" gorm:"not null"`
	ValueType FieldValueType `json:"value_type" gorm:"size:16;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FormField) TableName() string {
	return "form_fields"
}
