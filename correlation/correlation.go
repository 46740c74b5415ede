// Package correlation trägt eine Korrelations-ID durch beide Services.
package correlation

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header ist der HTTP-Header, in dem die ID zwischen den Services wandert.
const Header = "X-Correlation-ID"

type ctxKey struct{}

// With legt id im Kontext ab.
func With(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// From liest die ID aus dem Kontext, leer falls keine gesetzt ist.
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Ensure liefert einen Kontext, der garantiert eine ID trägt.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := From(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return With(ctx, id), id
}

// Middleware übernimmt die ID des Aufrufers oder erzeugt eine neue und spiegelt sie in der Antwort.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(With(c.Request.Context(), id))
		c.Header(Header, id)
		c.Next()
	}
}
