package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slr-manager/apperr"
	"slr-manager/models"
)

// Relation benennt eine Viele-zu-viele-Beziehung mit eigener Verknüpfungstabelle.
type Relation int

const (
	RelationKeyword Relation = iota
	RelationSelectionCriteria
	RelationDataSource
	RelationResearcher
)

// relationSpec beschreibt eine Beziehung: Besitzer (Protokoll bzw. SLR), Ziel und die Tabelle dazwischen.
type relationSpec struct {
	owner       string
	target      string
	ownerCol    string
	targetCol   string
	ownerModel  func() any
	targetModel func() any
	linkModel   func() any
	newLink     func(ownerID, targetID uint) any
}

var relations = map[Relation]relationSpec{
	RelationKeyword: {
		owner:       "protocol",
		target:      "keyword",
		ownerCol:    "protocol_id",
		targetCol:   "keyword_id",
		ownerModel:  func() any { return &models.Protocol{} },
		targetModel: func() any { return &models.Keyword{} },
		linkModel:   func() any { return &models.ProtocolKeyword{} },
		newLink:     func(o, t uint) any { return &models.ProtocolKeyword{ProtocolID: o, KeywordID: t} },
	},
	RelationSelectionCriteria: {
		owner:       "protocol",
		target:      "selection criteria",
		ownerCol:    "protocol_id",
		targetCol:   "selection_criteria_id",
		ownerModel:  func() any { return &models.Protocol{} },
		targetModel: func() any { return &models.SelectionCriteria{} },
		linkModel:   func() any { return &models.ProtocolSelectionCriteria{} },
		newLink:     func(o, t uint) any { return &models.ProtocolSelectionCriteria{ProtocolID: o, SelectionCriteriaID: t} },
	},
	RelationDataSource: {
		owner:       "protocol",
		target:      "data source",
		ownerCol:    "protocol_id",
		targetCol:   "data_source_id",
		ownerModel:  func() any { return &models.Protocol{} },
		targetModel: func() any { return &models.DataSource{} },
		linkModel:   func() any { return &models.ProtocolDataSource{} },
		newLink:     func(o, t uint) any { return &models.ProtocolDataSource{ProtocolID: o, DataSourceID: t} },
	},
	RelationResearcher: {
		owner:       "slr",
		target:      "researcher",
		ownerCol:    "slr_id",
		targetCol:   "researcher_id",
		ownerModel:  func() any { return &models.SLR{} },
		targetModel: func() any { return &models.Researcher{} },
		linkModel:   func() any { return &models.SLRResearcher{} },
		newLink:     func(o, t uint) any { return &models.SLRResearcher{SLRID: o, ResearcherID: t} },
	},
}

// LinkManager pflegt die Verknüpfungstabellen. Eine Verknüpfungszeile ist beide
// Adjazenz-Einträge zugleich, daher ändern sich immer beide Seiten oder keine.
// Alle Methoden arbeiten auf der übergebenen Transaktion.
type LinkManager struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// NewLinkManager erstellt einen LinkManager.
func NewLinkManager(logger *zap.Logger) *LinkManager {
	return &LinkManager{Logger: logger, Now: time.Now}
}

// Link verknüpft Besitzer und Ziel. Ein bereits bestehendes Paar ist kein Fehler.
// Der Besitzer wird genau einmal und zuletzt geschrieben.
func (m *LinkManager) Link(tx *gorm.DB, rel Relation, ownerID, targetID uint) error {
	spec := relations[rel]
	if err := exists(tx, spec.ownerModel(), spec.owner, ownerID); err != nil {
		return err
	}
	if err := exists(tx, spec.targetModel(), spec.target, targetID); err != nil {
		return err
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(spec.newLink(ownerID, targetID))
	if res.Error != nil {
		return apperr.Internal(res.Error, "link %s %d to %s %d", spec.target, targetID, spec.owner, ownerID)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return m.touch(tx, spec, ownerID)
}

// Unlink löst die Verknüpfung. Ein nicht verknüpftes Paar ist kein Fehler.
func (m *LinkManager) Unlink(tx *gorm.DB, rel Relation, ownerID, targetID uint) error {
	spec := relations[rel]
	res := tx.Where(spec.ownerCol+" = ? AND "+spec.targetCol+" = ?", ownerID, targetID).Delete(spec.linkModel())
	if res.Error != nil {
		return apperr.Internal(res.Error, "unlink %s %d from %s %d", spec.target, targetID, spec.owner, ownerID)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return m.touch(tx, spec, ownerID)
}

// Linked meldet, ob das Paar verknüpft ist.
func (m *LinkManager) Linked(tx *gorm.DB, rel Relation, ownerID, targetID uint) (bool, error) {
	spec := relations[rel]
	var count int64
	err := tx.Model(spec.linkModel()).
		Where(spec.ownerCol+" = ? AND "+spec.targetCol+" = ?", ownerID, targetID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Internal(err, "check %s link", spec.target)
	}
	return count > 0, nil
}

// TargetIDs liefert die Ziele eines Besitzers, aufsteigend sortiert.
func (m *LinkManager) TargetIDs(tx *gorm.DB, rel Relation, ownerID uint) ([]uint, error) {
	spec := relations[rel]
	var ids []uint
	err := tx.Model(spec.linkModel()).
		Where(spec.ownerCol+" = ?", ownerID).
		Order(spec.targetCol).
		Pluck(spec.targetCol, &ids).Error
	if err != nil {
		return nil, apperr.Internal(err, "list %s links of %s %d", spec.target, spec.owner, ownerID)
	}
	return ids, nil
}

// OwnerIDs liefert die Besitzer eines Ziels, aufsteigend sortiert.
func (m *LinkManager) OwnerIDs(tx *gorm.DB, rel Relation, targetID uint) ([]uint, error) {
	spec := relations[rel]
	var ids []uint
	err := tx.Model(spec.linkModel()).
		Where(spec.targetCol+" = ?", targetID).
		Order(spec.ownerCol).
		Pluck(spec.ownerCol, &ids).Error
	if err != nil {
		return nil, apperr.Internal(err, "list %s links of %s %d", spec.owner, spec.target, targetID)
	}
	return ids, nil
}

// DetachOwner löst alle Verknüpfungen einer Art von einem Besitzer und liefert die gelösten Ziele.
// Die Ziele selbst bleiben bestehen.
func (m *LinkManager) DetachOwner(tx *gorm.DB, rel Relation, ownerID uint) ([]uint, error) {
	spec := relations[rel]
	ids, err := m.TargetIDs(tx, rel, ownerID)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	if err := tx.Where(spec.ownerCol+" = ?", ownerID).Delete(spec.linkModel()).Error; err != nil {
		return nil, apperr.Internal(err, "detach %s links of %s %d", spec.target, spec.owner, ownerID)
	}
	if err := m.touch(tx, spec, ownerID); err != nil {
		return nil, err
	}
	m.Logger.Debug("Detached links from owner",
		zap.String("owner", spec.owner), zap.Uint("owner_id", ownerID),
		zap.String("target", spec.target), zap.Int("count", len(ids)))
	return ids, nil
}

// DetachTarget löst ein Ziel von allen Besitzern und liefert diese. Jeder Besitzer
// wird genau einmal geschrieben; gelöscht wird keiner.
func (m *LinkManager) DetachTarget(tx *gorm.DB, rel Relation, targetID uint) ([]uint, error) {
	spec := relations[rel]
	owners, err := m.OwnerIDs(tx, rel, targetID)
	if err != nil || len(owners) == 0 {
		return owners, err
	}
	if err := tx.Where(spec.targetCol+" = ?", targetID).Delete(spec.linkModel()).Error; err != nil {
		return nil, apperr.Internal(err, "detach %s %d from all owners", spec.target, targetID)
	}
	if err := m.touch(tx, spec, owners...); err != nil {
		return nil, err
	}
	m.Logger.Debug("Detached target from owners",
		zap.String("target", spec.target), zap.Uint("target_id", targetID),
		zap.Uints("owner_ids", owners))
	return owners, nil
}

// touch schreibt updated_at der Besitzer als letzten Schritt einer Link-Operation.
func (m *LinkManager) touch(tx *gorm.DB, spec relationSpec, ownerIDs ...uint) error {
	err := tx.Model(spec.ownerModel()).
		Where("id IN ?", ownerIDs).
		UpdateColumn("updated_at", m.Now()).Error
	if err != nil {
		return apperr.Internal(err, "touch %s %v", spec.owner, ownerIDs)
	}
	return nil
}
