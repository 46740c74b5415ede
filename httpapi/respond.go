// Package httpapi enthält die gin-Bausteine, die beide Services teilen.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"slr-manager/apperr"
	"slr-manager/correlation"
)

// RespondError übersetzt einen Service-Fehler in eine JSON-Antwort. Serverseitige
// Fehler werden vorher geloggt.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.String("correlation_id", correlation.From(c.Request.Context())),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": apperr.KindOf(err)})
}

// ParamID liest einen positiven numerischen Pfadparameter. Bei Fehler ist die Antwort bereits geschrieben.
func ParamID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": apperr.KindInvalidInput})
		return 0, false
	}
	return uint(id), true
}

// BindJSON bindet den Request-Body. Bei Fehler ist die Antwort bereits geschrieben.
func BindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": apperr.KindInvalidInput})
		return false
	}
	return true
}
