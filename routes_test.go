package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slr-manager/apperr"
	"slr-manager/config"
	"slr-manager/correlation"
	"slr-manager/models"
	"slr-manager/providers/searchservice"
	"slr-manager/storage"
)

type stubSearchService struct {
	deleteErr error
	deleted   []uint
}

func (s *stubSearchService) DeleteFormInstances(_ context.Context, formID uint) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, formID)
	return nil
}

func (s *stubSearchService) CreateSearch(_ context.Context, dataSourceID uint, in searchservice.CreateSearchRequest) (*searchservice.SearchResponse, error) {
	return &searchservice.SearchResponse{ID: 1, ProtocolID: in.ProtocolID, DataSourceID: dataSourceID}, nil
}

type testServer struct {
	router *gin.Engine
	remote *stubSearchService
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
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

	remote := &stubSearchService{}
	log := zap.NewNop()
	svc := newReviewServices(db, remote, nil, cfg, log)
	return &testServer{router: setupRouter(svc, cfg, storage.NewMemoryDenyList(), log), remote: remote}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) uint {
	t.Helper()
	var out struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	require.NotZero(t, out.ID, w.Body.String())
	return out.ID
}

func urlf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// seedReview legt über die HTTP-Schnittstelle S1 mit R1, Protokoll Q1 und einem
// Extraktionsformular an und gibt SLR- und Protokoll-ID zurück.
func seedReview(t *testing.T, s *testServer) (uint, uint) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/researchers", map[string]any{"name": "R1", "user_id": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	researcherID := decodeID(t, w)

	w = s.do(t, http.MethodPost, "/slr", map[string]any{"title": "S1", "principal_researcher_id": researcherID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	slrID := decodeID(t, w)

	w = s.do(t, http.MethodPost, urlf("/slr/%d/protocol", slrID), map[string]any{"principal_question": "Q1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	protocolID := decodeID(t, w)

	w = s.do(t, http.MethodPost, urlf("/protocol/%d/keywords", protocolID), map[string]any{"word": "ml"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, urlf("/protocol/%d/forms/extraction", protocolID), map[string]any{
		"fields": []map[string]any{{"name": "sample size", "value_type": "NUMBER"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return slrID, protocolID
}

func TestRoutes_ReviewLifecycle(t *testing.T) {
	s := newTestServer(t, &config.Config{SearchJobMaxRetries: 3})
	slrID, protocolID := seedReview(t, s)

	w := s.do(t, http.MethodGet, urlf("/protocol/%d/get-form-data/extraction", protocolID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var form models.Form
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &form))
	require.Len(t, form.Fields, 1)
	assert.Equal(t, "sample size", form.Fields[0].Name)

	w = s.do(t, http.MethodGet, urlf("/protocol/%d/get-form-data/quality", protocolID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodGet, urlf("/protocol/%d/get-form-data/summary", protocolID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, urlf("/slr/%d/protocol", slrID), map[string]any{"principal_question": "Q2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/users/10/slrs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var slrs []models.SLR
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &slrs))
	require.Len(t, slrs, 1)
	assert.Equal(t, slrID, slrs[0].ID)

	w = s.do(t, http.MethodDelete, urlf("/slr/%d", slrID), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Len(t, s.remote.deleted, 1)

	w = s.do(t, http.MethodGet, urlf("/slr/%d", slrID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodDelete, urlf("/slr/%d", slrID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_DeleteSLRWithSearchServiceDown(t *testing.T) {
	s := newTestServer(t, &config.Config{})
	slrID, protocolID := seedReview(t, s)
	s.remote.deleteErr = apperr.FromRemoteStatus(http.StatusInternalServerError, "", "delete form instances")

	w := s.do(t, http.MethodDelete, urlf("/slr/%d", slrID), nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), string(apperr.KindCannotDelete))

	w = s.do(t, http.MethodGet, urlf("/protocol/%d", protocolID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p models.Protocol
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.NotNil(t, p.ExtractionForm)
	assert.Len(t, p.Keywords, 1)
}

func TestRoutes_EnqueueSearch(t *testing.T) {
	s := newTestServer(t, &config.Config{SearchJobMaxRetries: 3})
	_, protocolID := seedReview(t, s)

	w := s.do(t, http.MethodPost, urlf("/protocol/%d/data-sources", protocolID), map[string]any{"name": "ACM", "url": "https://dl.acm.org"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dataSourceID := decodeID(t, w)

	w = s.do(t, http.MethodPost, urlf("/protocol/%d/searches", protocolID), map[string]any{"data_source_id": dataSourceID, "query": "ml"},
		correlation.Header, "corr-route")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job models.SearchJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, models.SearchJobPending, job.Status)
	assert.Equal(t, "corr-route", job.CorrelationID)

	w = s.do(t, http.MethodGet, urlf("/search-jobs/%d", job.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, urlf("/protocol/%d/data-sources/%d", protocolID, dataSourceID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodPost, urlf("/protocol/%d/searches", protocolID), map[string]any{"data_source_id": dataSourceID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_Authentication(t *testing.T) {
	s := newTestServer(t, &config.Config{APISecretKey: "api-key", JWTSecret: "jwt-secret"})

	w := s.do(t, http.MethodGet, "/protocol/1/get-selection-criteria", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/protocol/1/get-selection-criteria", nil, "X-API-KEY", "api-key")
	assert.Equal(t, http.StatusNotFound, w.Code, "cross-service routes need only the api key")

	w = s.do(t, http.MethodGet, "/slr/1", nil, "X-API-KEY", "api-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "user routes need a bearer token")
}
