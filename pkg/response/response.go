package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code     domain.ErrorCode `json:"code"`
	Message  string           `json:"message"`
	Rule     string           `json:"rule,omitempty"`
	Snapshot any              `json:"snapshot,omitempty"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type pageMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, envelope{Success: true, Data: data})
}

func Paginated(c *gin.Context, items any, total int64, page, limit int) {
	c.JSON(http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Meta:    pageMeta{Total: total, Page: page, Limit: limit},
	})
}

func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
		Error: &ErrorBody{Code: domain.CodeValidation, Message: message},
	})
}

func Unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
		Error: &ErrorBody{Code: domain.CodeUnauthorized, Message: message},
	})
}

func Forbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, envelope{
		Error: &ErrorBody{Code: domain.CodeForbidden, Message: message},
	})
}

// Error renders err for customer-facing callers: code, message and rule only.
func Error(c *gin.Context, err error) {
	render(c, err, false)
}

// AdminError renders err including the conflicting state snapshot, if any.
func AdminError(c *gin.Context, err error) {
	render(c, err, true)
}

func render(c *gin.Context, err error, withSnapshot bool) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
			Error: &ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"},
		})
		return
	}

	body := &ErrorBody{Code: de.Code, Message: de.Message, Rule: de.Rule}
	if withSnapshot {
		body.Snapshot = de.Snapshot
	}
	c.AbortWithStatusJSON(StatusFor(de.Code), envelope{Error: body})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeAmountMismatch, domain.CodeMissingProof:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidTransition, domain.CodeConflict, domain.CodeAlreadyDecided:
		return http.StatusConflict
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
