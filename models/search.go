package models

import "time"

// Die folgenden Modelle liegen in der Datenbank des Search-Service. Verweise auf
// Review-Entitäten (Protokoll, Datenquelle, Formular) sind reine IDs.

// Search ist eine Suche in einer Datenquelle eines Protokolls.
type Search struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	ProtocolID   uint      `json:"protocol_id" gorm:"index;not null"`
	DataSourceID uint      `json:"data_source_id" gorm:"index;not null"`
	Query        string    `json:"query,omitempty" gorm:"type:text"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Search) TableName() string {
	return "searches"
}

// Study ist ein Treffer einer Suche.
type Study struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	SearchID  uint      `json:"search_id" gorm:"index;not null"`
	Title     string    `json:"title" gorm:"not null"`
	Authors   string    `json:"authors,omitempty"`
	Year      int       `json:"year,omitempty"`
	DOI       string    `json:"doi,omitempty" gorm:"column:doi"`

	ExtractionInstance *FormInstance `json:"extraction_instance,omitempty" gorm:"-"`
	QualityInstance    *FormInstance `json:"quality_instance,omitempty" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Study) TableName() string {
	return "studies"
}

// FormInstance materialisiert ein Formular für eine Studie (höchstens eine pro Rolle).
type FormInstance struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	StudyID   uint      `json:"study_id" gorm:"uniqueIndex:idx_form_instances_study_role;not null"`
	Role      FormRole  `json:"role" gorm:"size:16;uniqueIndex:idx_form_instances_study_role;not null"`
	FormID    uint      `json:"form_id" gorm:"index;not null"`

	Fields []FormFieldInstance `json:"fields" gorm:"foreignKey:FormInstanceID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FormInstance) TableName() string {
	return "form_instances"
}

// FormFieldInstance ist der Wert eines Formularfelds für eine Studie.
type FormFieldInstance struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	FormInstanceID uint           `json:"form_instance_id" gorm:"index;not null"`
	FormFieldID    uint           `json:"form_field_id" gorm:"not null"`
	Position       int            `json:"position"`
	Name           string         `json:"name"`
	ValueType      FieldValueType `json:"value_type" gorm:"size:16"`
	Value          string         `json:"value,omitempty" gorm:"type:text"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FormFieldInstance) TableName() string {
	return "form_field_instances"
}
