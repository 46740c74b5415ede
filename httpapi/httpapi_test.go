package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"slr-manager/apperr"
	"slr-manager/storage"
)

const testSecret = "jwt-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(deny storage.DenyList) *gin.Engine {
	router := gin.New()
	group := router.Group("/", BearerAuth(testSecret, deny, zap.NewNop()))
	group.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(ctxSubject)})
	})
	group.POST("/auth/revoke", RevokeHandler(deny, zap.NewNop()))
	return router
}

func doRequest(router http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth("secret"))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req.Header.Set("X-API-KEY", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	open := gin.New()
	open.Use(APIKeyAuth(""))
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth_RejectsInvalidTokens(t *testing.T) {
	router := newAuthRouter(storage.NewMemoryDenyList())
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: signToken(t, "other", jwt.RegisteredClaims{Subject: "u1", ExpiresAt: future})},
		{name: "expired", token: signToken(t, testSecret, jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/me", tt.token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestBearerAuth_RevokedTokenIsRejected(t *testing.T) {
	deny := storage.NewMemoryDenyList()
	router := newAuthRouter(deny)
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ID:        "token-1",
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	w := doRequest(router, http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"user-1"}`, w.Body.String())

	w = doRequest(router, http.MethodPost, "/auth/revoke", token)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

func TestBearerAuth_TokenWithoutIDIsRevokedByHash(t *testing.T) {
	deny := storage.NewMemoryDenyList()
	router := newAuthRouter(deny)
	token := signToken(t, testSecret, jwt.RegisteredClaims{Subject: "user-2"})
	other := signToken(t, testSecret, jwt.RegisteredClaims{Subject: "user-3"})

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/auth/revoke", token).Code)

	assert.Equal(t, http.StatusUnauthorized, doRequest(router, http.MethodGet, "/me", token).Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/me", other).Code)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   apperr.Kind
	}{
		{apperr.NotFound("slr", 1), http.StatusNotFound, apperr.KindNotFound},
		{apperr.InvalidInput("bad"), http.StatusBadRequest, apperr.KindInvalidInput},
		{apperr.AlreadyExists("dup"), http.StatusConflict, apperr.KindAlreadyExists},
		{apperr.CannotDelete("slr", 1, apperr.RemoteUnavailable(nil, "down")), http.StatusServiceUnavailable, apperr.KindCannotDelete},
		{errors.New("boom"), http.StatusInternalServerError, apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			router := gin.New()
			router.GET("/x", func(c *gin.Context) { RespondError(c, zap.NewNop(), tt.err) })
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, string(tt.kind), body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestParamID(t *testing.T) {
	router := gin.New()
	router.GET("/slr/:id", func(c *gin.Context) {
		id, ok := ParamID(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{"/slr/12": http.StatusOK, "/slr/0": http.StatusBadRequest, "/slr/abc": http.StatusBadRequest} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}
