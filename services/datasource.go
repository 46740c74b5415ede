package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
)

// CreateDataSourceInput ist die Anfrage zum Anlegen einer Datenquelle.
// Kind ist der Diskriminator; fehlt er, wird er aus den Feldern abgeleitet.
type CreateDataSourceInput struct {
	Kind            models.DataSourceKind       `json:"kind"`
	Name            string                      `json:"name" validate:"required,max=255"`
	Source          string                      `json:"source"`
	URL             string                      `json:"url" validate:"omitempty,http_url"`
	SnowballingType models.SnowballingDirection `json:"snowballing_type"`
	OriginStudyID   *uint                       `json:"origin_study_id"`
}

// resolveKind bestimmt die Variante. Eine Anfrage mit URL und Snowballing-Richtung ist
// mehrdeutig und wird abgelehnt, ebenso Felder, die nicht zur expliziten Variante passen.
func (in CreateDataSourceInput) resolveKind() (models.DataSourceKind, error) {
	kind := in.Kind
	if kind == "" {
		switch {
		case in.URL != "" && in.SnowballingType != "":
			return "", apperr.InvalidInput("ambiguous data source: both url and snowballing_type are set, specify kind")
		case in.SnowballingType != "":
			kind = models.DataSourceSnowballing
		case in.URL != "":
			kind = models.DataSourcePredefined
		default:
			kind = models.DataSourceCustom
		}
	}

	switch kind {
	case models.DataSourceCustom:
		if in.URL != "" || in.SnowballingType != "" || in.OriginStudyID != nil {
			return "", apperr.InvalidInput("custom data source accepts only name and source")
		}
	case models.DataSourcePredefined:
		if in.URL == "" {
			return "", apperr.InvalidInput("predefined data source requires url")
		}
		if in.SnowballingType != "" || in.OriginStudyID != nil || in.Source != "" {
			return "", apperr.InvalidInput("predefined data source accepts only name and url")
		}
	case models.DataSourceSnowballing:
		if !in.SnowballingType.Valid() {
			return "", apperr.InvalidInput("snowballing data source requires snowballing_type BACKWARDS or FORWARD")
		}
		if in.URL != "" {
			return "", apperr.InvalidInput("snowballing data source does not accept url")
		}
	default:
		return "", apperr.InvalidInput("unknown data source kind %q", kind)
	}
	return kind, nil
}

// DataSourceRegistry legt Datenquellen-Varianten an, lädt und löscht sie. Jede
// Variante hat ihre eigene Tabelle; der Zugriff läuft immer über Kind der Basiszeile.
type DataSourceRegistry struct {
	DB     *gorm.DB
	Links  *LinkManager
	Logger *zap.Logger
}

// NewDataSourceRegistry erstellt eine neue Instanz der DataSourceRegistry.
func NewDataSourceRegistry(db *gorm.DB, links *LinkManager, logger *zap.Logger) *DataSourceRegistry {
	return &DataSourceRegistry{DB: db, Links: links, Logger: logger}
}

// Create legt Basis- und Variantenzeile an und verknüpft die Quelle mit dem Protokoll.
func (r *DataSourceRegistry) Create(ctx context.Context, protocolID uint, in CreateDataSourceInput) (*models.DataSource, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	kind, err := in.resolveKind()
	if err != nil {
		return nil, err
	}

	ds := &models.DataSource{Name: in.Name, Kind: kind}
	switch kind {
	case models.DataSourceCustom:
		ds.Custom = &models.CustomSource{Source: in.Source}
	case models.DataSourcePredefined:
		ds.Predefined = &models.PredefinedSource{URL: in.URL}
	case models.DataSourceSnowballing:
		ds.Snowballing = &models.SnowballingSource{
			Source:        in.Source,
			Direction:     in.SnowballingType,
			OriginStudyID: in.OriginStudyID,
		}
	}

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Protocol{}, "protocol", protocolID); err != nil {
			return err
		}
		if err := tx.Create(ds).Error; err != nil {
			return apperr.Internal(err, "create data source")
		}
		variant := variantRow(ds)
		if err := tx.Create(variant).Error; err != nil {
			return apperr.Internal(err, "create %s data source row", kind)
		}
		return r.Links.Link(tx, RelationDataSource, protocolID, ds.ID)
	})
	if err != nil {
		return nil, err
	}

	ds.ProtocolIDs = []uint{protocolID}
	r.Logger.Info("Data source created",
		zap.Uint("data_source_id", ds.ID),
		zap.String("kind", string(kind)),
		zap.Uint("protocol_id", protocolID))
	return ds, nil
}

// Get lädt eine Datenquelle samt Variante und verknüpften Protokollen.
func (r *DataSourceRegistry) Get(ctx context.Context, id uint) (*models.DataSource, error) {
	db := r.DB.WithContext(ctx)
	var ds models.DataSource
	if err := db.First(&ds, id).Error; err != nil {
		return nil, loadErr(err, "data source", id)
	}
	if err := r.loadVariant(db, &ds); err != nil {
		return nil, err
	}
	owners, err := r.Links.OwnerIDs(db, RelationDataSource, id)
	if err != nil {
		return nil, err
	}
	ds.ProtocolIDs = owners
	return &ds, nil
}

// Link verknüpft eine vorhandene Datenquelle mit einem weiteren Protokoll.
func (r *DataSourceRegistry) Link(ctx context.Context, protocolID, dataSourceID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.Links.Link(tx, RelationDataSource, protocolID, dataSourceID)
	})
}

// Unlink löst eine Datenquelle von einem Protokoll, ohne sie zu löschen.
func (r *DataSourceRegistry) Unlink(ctx context.Context, protocolID, dataSourceID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.Links.Unlink(tx, RelationDataSource, protocolID, dataSourceID)
	})
}

// Delete ermittelt die Variante über die Basiszeile, löst die Quelle von allen
// Protokollen und entfernt Varianten- und Basiszeile samt ihrer Suchaufträge.
// Die Protokolle bleiben bestehen.
func (r *DataSourceRegistry) Delete(ctx context.Context, id uint) error {
	var detached []uint
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ds models.DataSource
		if err := tx.First(&ds, id).Error; err != nil {
			return loadErr(err, "data source", id)
		}

		owners, err := r.Links.DetachTarget(tx, RelationDataSource, id)
		if err != nil {
			return err
		}
		detached = owners

		model, err := variantModel(ds.Kind)
		if err != nil {
			return err
		}
		if err := tx.Where("data_source_id = ?", id).Delete(model).Error; err != nil {
			return apperr.Internal(err, "delete %s row of data source %d", ds.Kind, id)
		}
		if err := tx.Where("data_source_id = ?", id).Delete(&models.SearchJob{}).Error; err != nil {
			return apperr.Internal(err, "delete search jobs of data source %d", id)
		}
		if err := tx.Delete(&ds).Error; err != nil {
			return apperr.Internal(err, "delete data source %d", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.Logger.Info("Data source deleted", zap.Uint("data_source_id", id), zap.Uints("detached_protocols", detached))
	return nil
}

// loadVariant füllt das zur Kind passende Varianten-Feld.
func (r *DataSourceRegistry) loadVariant(tx *gorm.DB, ds *models.DataSource) error {
	switch ds.Kind {
	case models.DataSourceCustom:
		var v models.CustomSource
		if err := tx.First(&v, "data_source_id = ?", ds.ID).Error; err != nil {
			return loadErr(err, "custom data source", ds.ID)
		}
		ds.Custom = &v
	case models.DataSourcePredefined:
		var v models.PredefinedSource
		if err := tx.First(&v, "data_source_id = ?", ds.ID).Error; err != nil {
			return loadErr(err, "predefined data source", ds.ID)
		}
		ds.Predefined = &v
	case models.DataSourceSnowballing:
		var v models.SnowballingSource
		if err := tx.First(&v, "data_source_id = ?", ds.ID).Error; err != nil {
			return loadErr(err, "snowballing data source", ds.ID)
		}
		ds.Snowballing = &v
	default:
		return apperr.Internal(nil, "data source %d has unknown kind %q", ds.ID, ds.Kind)
	}
	return nil
}

// loadLinked lädt alle Datenquellen eines Protokolls samt Variante.
func (r *DataSourceRegistry) loadLinked(tx *gorm.DB, protocolID uint) ([]models.DataSource, error) {
	sources := make([]models.DataSource, 0)
	err := tx.Joins("JOIN protocol_data_sources pds ON pds.data_source_id = data_sources.id").
		Where("pds.protocol_id = ?", protocolID).
		Order("data_sources.id").
		Find(&sources).Error
	if err != nil {
		return nil, apperr.Internal(err, "load data sources of protocol %d", protocolID)
	}
	for i := range sources {
		if err := r.loadVariant(tx, &sources[i]); err != nil {
			return nil, err
		}
	}
	return sources, nil
}

// variantRow setzt die Basis-ID in die Variantenzeile und gibt sie zurück.
func variantRow(ds *models.DataSource) any {
	switch ds.Kind {
	case models.DataSourceCustom:
		ds.Custom.DataSourceID = ds.ID
		return ds.Custom
	case models.DataSourcePredefined:
		ds.Predefined.DataSourceID = ds.ID
		return ds.Predefined
	default:
		ds.Snowballing.DataSourceID = ds.ID
		return ds.Snowballing
	}
}

func variantModel(kind models.DataSourceKind) (any, error) {
	switch kind {
	case models.DataSourceCustom:
		return &models.CustomSource{}, nil
	case models.DataSourcePredefined:
		return &models.PredefinedSource{}, nil
	case models.DataSourceSnowballing:
		return &models.SnowballingSource{}, nil
	}
	return nil, apperr.Internal(nil, "unknown data source kind %q", kind)
}
