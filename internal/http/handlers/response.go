// Package handlers implements the document library and study endpoints.
//
// Every failure leaves through fail (directly or via failFromService) so the
// body is always an ErrorResponse carrying the request id. Success writers
// below cover the few header conventions the API has: Location on create,
// weak ETags on the library listing, and the Idempotency-Replayed marker.
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "document not found"
//	}
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frandy73/Lumina/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID; quote it when reporting a problem
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"document not found"`
}

// fail aborts with the envelope. 5xx responses are also written to the
// request log (which carries the user id once authenticated), since their
// message is generic.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := middleware.GetRequestID(c)
	if reqID == "" {
		reqID = c.Writer.Header().Get("X-Request-ID")
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{RequestID: reqID, Code: code, Message: msg})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// created answers 201 with Location pointing at the new document.
func created(c *gin.Context, id string, body any) {
	c.Header("Location", c.Request.URL.Path+"/"+id)
	c.JSON(http.StatusCreated, body)
}

// replayed answers a repeated Idempotency-Key with the stored document.
func replayed(c *gin.Context, body any) {
	c.Header("Idempotency-Replayed", "true")
	c.JSON(http.StatusOK, body)
}

// libraryETag is the weak validator of a user's library: row count plus the
// latest update time.
func libraryETag(count int64, latest *time.Time) string {
	var stamp int64
	if latest != nil {
		stamp = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"docs:%d:%d"`, count, stamp)
}

// notModified sets ETag and reports whether the client copy is current,
// in which case a bodyless 304 has already been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
