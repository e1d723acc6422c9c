package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/tracing"
)

// Tracing opens a server span per request named after the matched route.
// Handlers see the span through c.Request.Context().
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		operation := c.FullPath()
		if operation == "" {
			operation = "unmatched"
		}

		span, ctx := tracing.StartServerSpan(c.Request, c.Request.Method+" "+operation)
		defer span.Finish()
		if id := c.GetString(RequestIDContextKey); id != "" {
			span.SetTag("request.id", id)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		ext.HTTPStatusCode.Set(span, uint16(status))
		if status >= 500 {
			ext.Error.Set(span, true)
		}
		if len(c.Errors) > 0 {
			span.LogKV("gin.errors", c.Errors.String())
		}
	}
}
