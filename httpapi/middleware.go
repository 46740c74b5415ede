package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"slr-manager/storage"
)

// APIKeyAuth prüft den X-API-KEY-Header. Ein leerer Key deaktiviert die Prüfung.
func APIKeyAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// Kontext-Schlüssel der Bearer-Prüfung.
const (
	ctxTokenID     = "token_id"
	ctxTokenExpiry = "token_expiry"
	ctxSubject     = "token_subject"
)

// BearerAuth prüft das Bearer-Token (HMAC, ausgestellt von der Benutzerverwaltung)
// und lehnt widerrufene Tokens ab. Ein leeres Secret deaktiviert die Prüfung.
// Die Token-ID ist die jti oder, falls diese fehlt, der SHA-256 des Tokens.
func BearerAuth(secret string, deny storage.DenyList, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token has expired"
			}
			log.Warn("Unauthorized access", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		tokenID := claims.ID
		if tokenID == "" {
			sum := sha256.Sum256([]byte(raw))
			tokenID = hex.EncodeToString(sum[:])
		}
		revoked, err := deny.IsRevoked(c.Request.Context(), tokenID)
		if err != nil {
			log.Error("Failed to check token revocation", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate token"})
			return
		}
		if revoked {
			log.Warn("Unauthorized access - token revoked", zap.String("token_id", tokenID))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			return
		}

		c.Set(ctxTokenID, tokenID)
		c.Set(ctxSubject, claims.Subject)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExpiry, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// defaultRevokeTTL gilt für Tokens ohne exp.
const defaultRevokeTTL = 24 * time.Hour

// RevokeHandler widerruft das Token des aktuellen Requests bis zu seinem Ablauf.
func RevokeHandler(deny storage.DenyList, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenID := c.GetString(ctxTokenID)
		if tokenID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no bearer token on request"})
			return
		}
		ttl := defaultRevokeTTL
		if exp, ok := c.Get(ctxTokenExpiry); ok {
			ttl = time.Until(exp.(time.Time))
		}
		if err := deny.Revoke(c.Request.Context(), tokenID, ttl); err != nil {
			log.Error("Failed to revoke token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
			return
		}
		log.Info("Token revoked", zap.String("subject", c.GetString(ctxSubject)))
		c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
	}
}
