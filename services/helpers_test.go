package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slr-manager/apperr"
	"slr-manager/models"
	"slr-manager/providers/reviewservice"
	"slr-manager/providers/searchservice"
)

// newTestDB öffnet eine In-Memory-SQLite mit allen Tabellen beider Services.
// Eine einzige Verbindung hält die Datenbank für die Dauer des Tests am Leben.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.ReviewModels()...))
	require.NoError(t, db.AutoMigrate(models.SearchModels()...))
	return db
}

// fakeSearchService ersetzt den Search-Service. failOn legt pro Formular einen Fehler fest.
type fakeSearchService struct {
	mu        sync.Mutex
	deleted   []uint
	failOn    map[uint]error
	failAll   error
	created   []searchservice.CreateSearchRequest
	createErr error
	nextID    uint
}

func newFakeSearchService() *fakeSearchService {
	return &fakeSearchService{failOn: map[uint]error{}}
}

func (f *fakeSearchService) DeleteFormInstances(_ context.Context, formID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failOn[formID]; ok {
		return err
	}
	f.deleted = append(f.deleted, formID)
	return nil
}

func (f *fakeSearchService) CreateSearch(_ context.Context, dataSourceID uint, in searchservice.CreateSearchRequest) (*searchservice.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	f.created = append(f.created, in)
	return &searchservice.SearchResponse{ID: f.nextID, ProtocolID: in.ProtocolID, DataSourceID: dataSourceID, Query: in.Query}, nil
}

func (f *fakeSearchService) deletedForms() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.deleted...)
}

// fakeReviewService liefert Kriterien und Formulare aus Maps.
type fakeReviewService struct {
	criteria map[uint][]reviewservice.Criteria
	forms    map[models.FormRole]*reviewservice.FormData
	err      error
}

func (f *fakeReviewService) SelectionCriteria(_ context.Context, protocolID uint) ([]reviewservice.Criteria, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.criteria[protocolID], nil
}

func (f *fakeReviewService) FormData(_ context.Context, protocolID uint, role models.FormRole) (*reviewservice.FormData, error) {
	if f.err != nil {
		return nil, f.err
	}
	form, ok := f.forms[role]
	if !ok {
		return nil, apperr.NotFound("form of protocol", protocolID)
	}
	return form, nil
}

// fixture verdrahtet die Review-Services auf einer Test-Datenbank.
type fixture struct {
	db          *gorm.DB
	remote      *fakeSearchService
	links       *LinkManager
	dataSources *DataSourceRegistry
	protocols   *ProtocolService
	slrs        *SLRService
	researchers *ResearcherService
	keywords    *KeywordService
	criteria    *SelectionCriteriaService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	remote := newFakeSearchService()

	links := NewLinkManager(log)
	clock := time.Now().UTC()
	links.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	cascade := NewCascadeOrchestrator(remote, log)
	dataSources := NewDataSourceRegistry(db, links, log)
	protocols := NewProtocolService(db, links, dataSources, cascade, log)
	return &fixture{
		db:          db,
		remote:      remote,
		links:       links,
		dataSources: dataSources,
		protocols:   protocols,
		slrs:        NewSLRService(db, links, protocols, cascade, log),
		researchers: NewResearcherService(db, log),
		keywords:    NewKeywordService(db, links, log),
		criteria:    NewSelectionCriteriaService(db, links, log),
	}
}

func (f *fixture) researcher(t *testing.T, name string, userID uint) *models.Researcher {
	t.Helper()
	r, err := f.researchers.Register(context.Background(), RegisterResearcherInput{Name: name, UserID: userID})
	require.NoError(t, err)
	return r
}

func (f *fixture) slr(t *testing.T, title string) *models.SLR {
	t.Helper()
	r := f.researcher(t, "R-"+title, 1)
	slr, err := f.slrs.Create(context.Background(), SLRInput{Title: title}, r.ID)
	require.NoError(t, err)
	return slr
}

func (f *fixture) protocol(t *testing.T, question string) *models.Protocol {
	t.Helper()
	slr := f.slr(t, "SLR for "+question)
	p, err := f.protocols.Create(context.Background(), slr.ID, ProtocolInput{PrincipalQuestion: question})
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}
