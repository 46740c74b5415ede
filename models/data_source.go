package models

import "time"

// DataSourceKind ist der Diskriminator der Datenquellen-Varianten.
type DataSourceKind string

const (
	DataSourceCustom      DataSourceKind = "CUSTOM"
	DataSourcePredefined  DataSourceKind = "PREDEFINED"
	DataSourceSnowballing DataSourceKind = "SNOWBALLING"
)

// Valid meldet, ob k eine bekannte Variante ist.
func (k DataSourceKind) Valid() bool {
	switch k {
	case DataSourceCustom, DataSourcePredefined, DataSourceSnowballing:
		return true
	}
	return false
}

// SnowballingDirection gibt die Richtung der Zitationsverfolgung an.
type SnowballingDirection string

const (
	SnowballingBackwards SnowballingDirection = "BACKWARDS"
	SnowballingForward   SnowballingDirection = "FORWARD"
)

// Valid meldet, ob d eine bekannte Richtung ist.
func (d SnowballingDirection) Valid() bool {
	return d == SnowballingBackwards || d == SnowballingForward
}

// DataSource ist die gemeinsame Identität aller Varianten. Genau eines der
// Varianten-Felder ist gesetzt, passend zu Kind.
//
// Gleichheit: nach ID. Zwei Zeilen mit identischen Feldern sind verschiedene Quellen.
type DataSource struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Name      string         `json:"name" gorm:"not null"`
	Kind      DataSourceKind `json:"kind" gorm:"size:16;not null;index"`

	Custom      *CustomSource      `json:"custom,omitempty" gorm:"-"`
	Predefined  *PredefinedSource  `json:"predefined,omitempty" gorm:"-"`
	Snowballing *SnowballingSource `json:"snowballing,omitempty" gorm:"-"`

	ProtocolIDs []uint `json:"protocol_ids" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (DataSource) TableName() string {
	return "data_sources"
}

// Equal vergleicht nach ID.
func (d DataSource) Equal(other DataSource) bool {
	return d.ID != 0 && d.ID == other.ID
}

// CustomSource ist eine frei beschriebene Quelle.
type CustomSource struct {
	DataSourceID uint   `json:"-" gorm:"primaryKey;autoIncrement:false"`
	Source       string `json:"source" gorm:"type:text"`
}

func (CustomSource) TableName() string { return "custom_data_sources" }

// PredefinedSource ist eine Literaturdatenbank mit fester URL.
type PredefinedSource struct {
	DataSourceID uint   `json:"-" gorm:"primaryKey;autoIncrement:false"`
	URL          string `json:"url" gorm:"not null"`
}

func (PredefinedSource) TableName() string { return "predefined_data_sources" }

// SnowballingSource verfolgt Zitationen ausgehend von einer Studie.
type SnowballingSource struct {
	DataSourceID  uint                 `json:"-" gorm:"primaryKey;autoIncrement:false"`
	Source        string               `json:"source,omitempty" gorm:"type:text"`
	Direction     SnowballingDirection `json:"direction" gorm:"size:16;not null"`
	OriginStudyID *uint                `json:"origin_study_id,omitempty"`
}

func (SnowballingSource) TableName() string { return "snowballing_data_sources" }
