package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"slr-manager/apperr"
	"slr-manager/models"
)

// KeywordService verwaltet Keywords. Keywords sind systemweit eindeutig nach Text
// und werden von mehreren Protokollen geteilt.
type KeywordService struct {
	DB     *gorm.DB
	Links  *LinkManager
	Logger *zap.Logger
}

// NewKeywordService erstellt eine neue Instanz des KeywordService.
func NewKeywordService(db *gorm.DB, links *LinkManager, logger *zap.Logger) *KeywordService {
	return &KeywordService{DB: db, Links: links, Logger: logger}
}

// CreateAndLink sucht ein Keyword mit exakt diesem Text und verknüpft es mit dem
// Protokoll; existiert keines, wird es angelegt.
func (s *KeywordService) CreateAndLink(ctx context.Context, protocolID uint, word string) (*models.Keyword, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, apperr.InvalidInput("keyword must not be empty")
	}
	if len(word) > 255 {
		return nil, apperr.InvalidInput("keyword exceeds 255 characters")
	}

	var kw models.Keyword
	reused := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Protocol{}, "protocol", protocolID); err != nil {
			return err
		}

		err := tx.Where("word = ?", word).First(&kw).Error
		switch {
		case err == nil:
			reused = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Paralleles Anlegen desselben Texts: Unique-Index greift, danach neu lesen.
			kw = models.Keyword{Word: word}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&kw).Error; err != nil {
				return apperr.Internal(err, "create keyword")
			}
			if kw.ID == 0 {
				if err := tx.Where("word = ?", word).First(&kw).Error; err != nil {
					return loadErr(err, "keyword", word)
				}
				reused = true
			}
		default:
			return apperr.Internal(err, "look up keyword %q", word)
		}

		return s.Links.Link(tx, RelationKeyword, protocolID, kw.ID)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Keyword linked",
		zap.Uint("keyword_id", kw.ID),
		zap.String("word", kw.Word),
		zap.Uint("protocol_id", protocolID),
		zap.Bool("reused", reused))
	return &kw, nil
}

// Get lädt ein Keyword samt verknüpften Protokollen.
func (s *KeywordService) Get(ctx context.Context, id uint) (*models.Keyword, error) {
	db := s.DB.WithContext(ctx)
	var kw models.Keyword
	if err := db.First(&kw, id).Error; err != nil {
		return nil, loadErr(err, "keyword", id)
	}
	owners, err := s.Links.OwnerIDs(db, RelationKeyword, id)
	if err != nil {
		return nil, err
	}
	kw.ProtocolIDs = owners
	return &kw, nil
}

// Unlink löst ein Keyword von einem Protokoll. Das Keyword bleibt bestehen.
func (s *KeywordService) Unlink(ctx context.Context, protocolID, keywordID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Links.Unlink(tx, RelationKeyword, protocolID, keywordID)
	})
}

// Delete löst das Keyword von allen Protokollen und löscht es.
func (s *KeywordService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var kw models.Keyword
		if err := tx.First(&kw, id).Error; err != nil {
			return loadErr(err, "keyword", id)
		}
		if _, err := s.Links.DetachTarget(tx, RelationKeyword, id); err != nil {
			return err
		}
		if err := tx.Delete(&kw).Error; err != nil {
			return apperr.Internal(err, "delete keyword %d", id)
		}
		return nil
	})
}

// loadLinkedKeywords lädt die Keywords eines Protokolls.
func loadLinkedKeywords(tx *gorm.DB, protocolID uint) ([]models.Keyword, error) {
	keywords := make([]models.Keyword, 0)
	err := tx.Joins("JOIN protocol_keywords pk ON pk.keyword_id = keywords.id").
		Where("pk.protocol_id = ?", protocolID).
		Order("keywords.id").
		Find(&keywords).Error
	if err != nil {
		return nil, apperr.Internal(err, "load keywords of protocol %d", protocolID)
	}
	return keywords, nil
}
