package models

// Verknüpfungstabellen. Eine Zeile steht für beide Richtungen einer Beziehung.

type ProtocolKeyword struct {
	ProtocolID uint `gorm:"primaryKey;autoIncrement:false"`
	KeywordID  uint `gorm:"primaryKey;autoIncrement:false;index"`
}

func (ProtocolKeyword) TableName() string { return "protocol_keywords" }

type ProtocolSelectionCriteria struct {
	ProtocolID          uint `gorm:"primaryKey;autoIncrement:false"`
	SelectionCriteriaID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

func (ProtocolSelectionCriteria) TableName() string { return "protocol_selection_criteria" }

type ProtocolDataSource struct {
	ProtocolID   uint `gorm:"primaryKey;autoIncrement:false"`
	DataSourceID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

func (ProtocolDataSource) TableName() string { return "protocol_data_sources" }

type SLRResearcher struct {
	SLRID        uint `gorm:"column:slr_id;primaryKey;autoIncrement:false"`
	ResearcherID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

func (SLRResearcher) TableName() string { return "slr_researchers" }
