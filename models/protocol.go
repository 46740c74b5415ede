package models

import "time"

// Protocol ist der Forschungsplan eines SLR. Die Slices sind Lese-Sichten auf die
// Verknüpfungstabellen und werden vom Link-Manager befüllt.
type Protocol struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SLRID             uint     `json:"slr_id" gorm:"column:slr_id;uniqueIndex;not null"`
	PrincipalQuestion string   `json:"principal_question" gorm:"type:text"`
	SecondaryQuestion string   `json:"secondary_question,omitempty" gorm:"type:text"`
	Languages         []string `json:"languages" gorm:"serializer:json"`

	Keywords          []Keyword           `json:"keywords" gorm:"-"`
	SelectionCriteria []SelectionCriteria `json:"selection_criteria" gorm:"-"`
	DataSources       []DataSource        `json:"data_sources" gorm:"-"`
	ExtractionForm    *Form               `json:"extraction_form,omitempty" gorm:"-"`
	QualityForm       *Form               `json:"quality_form,omitempty" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Protocol) TableName() string {
	return "protocols"
}

// FormFor liefert das Formular der Rolle oder nil.
func (p *Protocol) FormFor(role FormRole) *Form {
	switch role {
	case FormExtraction:
		return p.ExtractionForm
	case FormQuality:
		return p.QualityForm
	}
	return nil
}

// Keyword wird über Protokolle hinweg dedupliziert.
//
// Gleichheit: nach Wert (Word), nicht nach ID. Siehe Equal.
type Keyword struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	Word      string    `json:"word" gorm:"uniqueIndex;size:255;not null"`

	ProtocolIDs []uint `json:"protocol_ids" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Keyword) TableName() string {
	return "keywords"
}

// Equal vergleicht nach Text.
func (k Keyword) Equal(other Keyword) bool {
	return k.Word == other.Word
}

// CriteriaType ist INCLUSION oder EXCLUSION.
type CriteriaType string

const (
	CriteriaInclusion CriteriaType = "INCLUSION"
	CriteriaExclusion CriteriaType = "EXCLUSION"
)

// Valid meldet, ob t ein bekannter Typ ist.
func (t CriteriaType) Valid() bool {
	return t == CriteriaInclusion || t == CriteriaExclusion
}

// SelectionCriteria ist ein Ein- oder Ausschlusskriterium.
//
// Gleichheit: nach ID. Zwei Zeilen mit gleichem Text sind verschiedene Kriterien.
type SelectionCriteria struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Text      string       `json:"text" gorm:"type:text;not null"`
	Type      CriteriaType `json:"type" gorm:"size:16;not null"`

	ProtocolIDs []uint `json:"protocol_ids" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SelectionCriteria) TableName() string {
	return "selection_criteria"
}

// Equal vergleicht nach ID.
func (c SelectionCriteria) Equal(other SelectionCriteria) bool {
	return c.ID != 0 && c.ID == other.ID
}
