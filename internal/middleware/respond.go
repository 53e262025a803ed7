package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-authgate/accountgate/internal/core"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the error half of the response envelope
type ErrorBody struct {
	Code    core.Kind `json:"code"`
	Message string    `json:"message"`
}

// Envelope is the single response shape of the API
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// successEnvelope always carries data so an empty result reads as null
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

var kindStatus = map[core.Kind]int{
	core.KindForbidden:                http.StatusForbidden,
	core.KindUnauthorized:             http.StatusUnauthorized,
	core.KindNotFound:                 http.StatusNotFound,
	core.KindAccountNotFound:          http.StatusNotFound,
	core.KindTargetNotFound:           http.StatusNotFound,
	core.KindAlreadyLinked:            http.StatusConflict,
	core.KindCannotRemoveLastIdentity: http.StatusBadRequest,
	core.KindNoPasswordCredential:     http.StatusBadRequest,
	core.KindInvalidCode:              http.StatusBadRequest,
	core.KindTokenExpired:             http.StatusBadRequest,
	core.KindAccountBanned:            http.StatusForbidden,
	core.KindNoNestedImpersonation:    http.StatusBadRequest,
	core.KindNotImpersonating:         http.StatusBadRequest,
	core.KindRateLimited:              http.StatusTooManyRequests,
	core.KindEmailRejected:            http.StatusBadRequest,
	core.KindInvalidCredentials:       http.StatusUnauthorized,
	core.KindEmailNotVerified:         http.StatusForbidden,
	core.KindUserAlreadyExists:        http.StatusUnprocessableEntity,
	core.KindInvalidRequest:           http.StatusBadRequest,
	core.KindEmailDeliveryFailed:      http.StatusBadGateway,
	core.KindInternal:                 http.StatusInternalServerError,
}

// StatusForKind maps an error kind to its HTTP status
func StatusForKind(kind core.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondOK writes a success envelope
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, successEnvelope{Success: true, Data: data})
}

// RespondError writes the error envelope for err. Internal failures are
// logged with their cause and reported to the client without it.
func RespondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(c, err))
}

func errorStatus(c *gin.Context, err error) (int, Envelope) {
	kind := core.KindOf(err)
	message := "internal server error"
	var ce *core.Error
	if kind == core.KindInternal {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	} else if errors.As(err, &ce) {
		message = ce.Message
	}
	return StatusForKind(kind), Envelope{
		Success: false,
		Error:   &ErrorBody{Code: kind, Message: message},
	}
}

// WantsHTML reports whether the client is a browser navigating to a page
// rather than an API caller.
func WantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
