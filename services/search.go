package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"slr-manager/apperr"
	"slr-manager/models"
	"slr-manager/providers"
	"slr-manager/providers/reviewservice"
	"slr-manager/providers/searchservice"
)

// StudyInput beschreibt einen Treffer einer Suche.
type StudyInput struct {
	Title   string `json:"title" validate:"required"`
	Authors string `json:"authors"`
	Year    int    `json:"year" validate:"omitempty,gte=1000,lte=9999"`
	DOI     string `json:"doi"`
}

// SearchService verwaltet Suchen und Studien in der Datenbank des Search-Service.
// Protokoll, Datenquelle und Kriterien gehören dem Review-Service und werden nur per ID referenziert.
type SearchService struct {
	DB         *gorm.DB
	Review     providers.ReviewService
	Literature providers.LiteratureSearch
	Logger     *zap.Logger
}

// NewSearchService erstellt eine neue Instanz des SearchService. literature darf nil sein;
// dann ist der Import nicht verfügbar.
func NewSearchService(db *gorm.DB, review providers.ReviewService, literature providers.LiteratureSearch, logger *zap.Logger) *SearchService {
	return &SearchService{DB: db, Review: review, Literature: literature, Logger: logger}
}

// Create legt eine Suche für eine Datenquelle an.
func (s *SearchService) Create(ctx context.Context, dataSourceID uint, in searchservice.CreateSearchRequest) (*models.Search, error) {
	if dataSourceID == 0 {
		return nil, apperr.InvalidInput("data source id is required")
	}
	if in.ProtocolID == 0 {
		return nil, apperr.InvalidInput("protocol_id is required")
	}
	search := &models.Search{
		ProtocolID:   in.ProtocolID,
		DataSourceID: dataSourceID,
		Query:        strings.TrimSpace(in.Query),
	}
	if err := s.DB.WithContext(ctx).Create(search).Error; err != nil {
		return nil, apperr.Internal(err, "create search")
	}
	s.Logger.Info("Search created",
		zap.Uint("search_id", search.ID),
		zap.Uint("protocol_id", search.ProtocolID),
		zap.Uint("data_source_id", dataSourceID))
	return search, nil
}

// Get lädt eine Suche.
func (s *SearchService) Get(ctx context.Context, id uint) (*models.Search, error) {
	var search models.Search
	if err := s.DB.WithContext(ctx).First(&search, id).Error; err != nil {
		return nil, loadErr(err, "search", id)
	}
	return &search, nil
}

// SelectionCriteria holt die Kriterien des Protokolls der Suche vom Review-Service.
func (s *SearchService) SelectionCriteria(ctx context.Context, searchID uint) ([]reviewservice.Criteria, error) {
	search, err := s.Get(ctx, searchID)
	if err != nil {
		return nil, err
	}
	return s.Review.SelectionCriteria(ctx, search.ProtocolID)
}

// AddStudy legt eine Studie unter einer Suche an.
func (s *SearchService) AddStudy(ctx context.Context, searchID uint, in StudyInput) (*models.Study, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	study := &models.Study{
		SearchID: searchID,
		Title:    in.Title,
		Authors:  in.Authors,
		Year:     in.Year,
		DOI:      normalizeDOI(in.DOI),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Search{}, "search", searchID); err != nil {
			return err
		}
		if err := tx.Create(study).Error; err != nil {
			return apperr.Internal(err, "create study")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return study, nil
}

// ImportStudies führt die Query der Suche gegen die Literaturdatenbank aus und legt
// bis zu limit Treffer als Studien an. Treffer mit einer DOI, die in der Suche schon
// vorkommt, werden übersprungen. Zurückgegeben werden nur die neu angelegten Studien.
func (s *SearchService) ImportStudies(ctx context.Context, searchID uint, limit int) ([]models.Study, error) {
	if s.Literature == nil {
		return nil, apperr.Internal(nil, "literature import is not configured")
	}
	if limit <= 0 || limit > 1000 {
		return nil, apperr.InvalidInput("limit must be between 1 and 1000")
	}
	search, err := s.Get(ctx, searchID)
	if err != nil {
		return nil, err
	}
	if search.Query == "" {
		return nil, apperr.InvalidInput("search %d has no query", searchID)
	}

	hits, err := s.Literature.Search(ctx, search.Query, limit)
	if err != nil {
		return nil, err
	}

	created := make([]models.Study, 0, len(hits))
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dois []string
		if err := tx.Model(&models.Study{}).Where("search_id = ? AND doi <> ''", searchID).
			Pluck("doi", &dois).Error; err != nil {
			return apperr.Internal(err, "load studies of search %d", searchID)
		}
		seen := make(map[string]bool, len(dois))
		for _, d := range dois {
			seen[d] = true
		}

		for _, hit := range hits {
			doi := normalizeDOI(hit.DOI)
			if doi != "" && seen[doi] {
				continue
			}
			study := models.Study{SearchID: searchID, Title: hit.Title, Authors: hit.Authors, Year: hit.Year, DOI: doi}
			if err := tx.Create(&study).Error; err != nil {
				return apperr.Internal(err, "create imported study")
			}
			if doi != "" {
				seen[doi] = true
			}
			created = append(created, study)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Studies imported",
		zap.Uint("search_id", searchID),
		zap.Int("hits", len(hits)),
		zap.Int("created", len(created)))
	return created, nil
}

func normalizeDOI(doi string) string {
	return strings.ToLower(strings.TrimSpace(doi))
}

// GetStudy lädt eine Studie mit ihren Formular-Instanzen.
func (s *SearchService) GetStudy(ctx context.Context, id uint) (*models.Study, error) {
	db := s.DB.WithContext(ctx)
	var study models.Study
	if err := db.First(&study, id).Error; err != nil {
		return nil, loadErr(err, "study", id)
	}
	var instances []models.FormInstance
	err := db.Preload("Fields", func(tx *gorm.DB) *gorm.DB { return tx.Order("position") }).
		Where("study_id = ?", id).
		Find(&instances).Error
	if err != nil {
		return nil, apperr.Internal(err, "load form instances of study %d", id)
	}
	for i := range instances {
		switch instances[i].Role {
		case models.FormExtraction:
			study.ExtractionInstance = &instances[i]
		case models.FormQuality:
			study.QualityInstance = &instances[i]
		}
	}
	return &study, nil
}
