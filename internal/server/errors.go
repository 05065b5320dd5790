package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vetsub/internal/audit/domain"
	"github.com/smallbiznis/vetsub/internal/authorization"
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, subscriptiondomain.ErrOverlappingSubscription):
		return http.StatusConflict, errorPayload{
			Type:    "overlapping_subscription",
			Message: "subscription overlaps an existing one",
		}
	case errors.Is(err, subscriptiondomain.ErrInvalidTransition),
		errors.Is(err, staffdomain.ErrAlreadyActive),
		errors.Is(err, staffdomain.ErrAlreadyInactive):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_status_transition",
			Message: "action not allowed in the current status",
		}
	case errors.Is(err, subscriptiondomain.ErrClinicSuspended):
		return http.StatusConflict, errorPayload{
			Type:    "suspended_clinic",
			Message: "clinic is suspended",
		}
	case errors.Is(err, staffdomain.ErrAccountLimitExceeded):
		return http.StatusConflict, errorPayload{
			Type:    "account_limit_exceeded",
			Message: "no staff seat available",
		}
	case errors.Is(err, staffdomain.ErrDuplicateEmail):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "email already registered for this clinic",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code written to request logs.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authorization.ErrInvalidObject),
		errors.Is(err, authorization.ErrInvalidAction):
		return true
	case subscriptiondomain.IsValidationError(err),
		isClinicValidationError(err),
		isStaffValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isClinicValidationError(err error) bool {
	switch {
	case errors.Is(err, clinicdomain.ErrInvalidName),
		errors.Is(err, clinicdomain.ErrInvalidID),
		errors.Is(err, clinicdomain.ErrInvalidStatus):
		return true
	default:
		return false
	}
}

func isStaffValidationError(err error) bool {
	switch {
	case errors.Is(err, staffdomain.ErrInvalidClinic),
		errors.Is(err, staffdomain.ErrInvalidID),
		errors.Is(err, staffdomain.ErrInvalidName),
		errors.Is(err, staffdomain.ErrInvalidEmail),
		errors.Is(err, staffdomain.ErrInvalidRole),
		errors.Is(err, staffdomain.ErrInvalidPassword):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	return errors.Is(err, auditdomain.ErrInvalidClinic) || errors.Is(err, auditdomain.ErrInvalidAction)
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, clinicdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, staffdomain.ErrNotFound),
		errors.Is(err, referencedomain.ErrPlanNotFound),
		errors.Is(err, referencedomain.ErrPaymentMethodNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	for _, target := range []error{
		ErrInvalidRequest,
		authorization.ErrInvalidObject,
		authorization.ErrInvalidAction,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return rootCode(err)
}

// rootCode returns the innermost sentinel text of a wrapped error.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasSuffix(code, "_required") {
		return strings.TrimSuffix(code, "_required")
	}
	if strings.HasSuffix(code, "_inactive") {
		return strings.TrimSuffix(code, "_inactive")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch {
	case code == "invalid_request":
		return "invalid request"
	case strings.HasSuffix(code, "_required"):
		return "value is required"
	case strings.HasSuffix(code, "_inactive"):
		return "referenced item is inactive"
	default:
		return "invalid value"
	}
}
