package models

import "time"

// ResearcherRole unterscheidet den Hauptverantwortlichen von Mitwirkenden.
type ResearcherRole string

const (
	ResearcherPrincipal    ResearcherRole = "PRINCIPAL"
	ResearcherCollaborator ResearcherRole = "COLLABORATOR"
)

// SLR ist das Wurzel-Aggregat eines Systematic Literature Reviews.
// Protocol, Report und Researchers werden explizit geladen und nie über gorm-Assoziationen geschrieben.
type SLR struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	WorkField   string     `json:"work_field,omitempty"`
	Objective   string     `json:"objective,omitempty" gorm:"type:text"`
	Public      bool       `json:"public" gorm:"not null"`

	Protocol    *Protocol    `json:"protocol,omitempty" gorm:"-"`
	Report      *Report      `json:"report,omitempty" gorm:"-"`
	Researchers []Researcher `json:"researchers,omitempty" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SLR) TableName() string {
	return "slrs"
}

// Researcher ist die Teilnahme eines externen Users an Reviews. Ein User kann mehrere Zeilen besitzen.
type Researcher struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	Name      string         `json:"name" gorm:"not null"`
	Role      ResearcherRole `json:"role" gorm:"size:16;not null"`
	UserID    uint           `json:"user_id" gorm:"index;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Researcher) TableName() string {
	return "researchers"
}

// Report ist der Abschlussbericht eines SLR (höchstens einer pro SLR).
type Report struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SLRID      uint       `json:"slr_id" gorm:"column:slr_id;uniqueIndex;not null"`
	Title      string     `json:"title"`
	Content    string     `json:"content" gorm:"type:text"`
	S3Link     string     `json:"s3_link,omitempty"`
	ExportedAt *time.Time `json:"exported_at,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Report) TableName() string {
	return "reports"
}
