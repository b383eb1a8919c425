package kit

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"tracker-api/internal/apperr"
	"tracker-api/internal/logx"
)

var kitLogger = logx.GetScope("httpx")

// APIError is a structured application error with code and message.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string { return e.Message }

func NewAPIError(httpStatus int, code, msg string, details any) *APIError {
	return &APIError{HTTPStatus: httpStatus, Code: code, Message: msg, Details: details}
}

// FieldError is one entry of a validation failure's details.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Translate maps the domain error taxonomy onto an APIError. Absent and
// out-of-workspace resources share one response so callers cannot probe
// other tenants.
func Translate(err error) *APIError {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae
	}
	if verr, ok := apperr.AsValidation(err); ok {
		keys := make([]string, 0, len(verr.Fields))
		for k := range verr.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		details := make([]FieldError, 0, len(keys))
		for _, k := range keys {
			details = append(details, FieldError{Field: k, Message: verr.Fields[k]})
		}
		return NewAPIError(http.StatusBadRequest, "E_VALIDATION", "validation failed", details)
	}
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return NewAPIError(http.StatusUnauthorized, "E_UNAUTHORIZED", "authentication required", nil)
	case errors.Is(err, apperr.ErrNotFound):
		return NewAPIError(http.StatusNotFound, "E_NOT_FOUND", "not found", nil)
	case errors.Is(err, apperr.ErrActionDisallowed):
		return NewAPIError(http.StatusForbidden, "E_FORBIDDEN", "action not allowed", nil)
	case errors.Is(err, apperr.ErrConflict):
		return NewAPIError(http.StatusConflict, "E_CONFLICT", wrappedMessage(err, apperr.ErrConflict, "conflict"), nil)
	case errors.Is(err, apperr.ErrBadRequest):
		return NewAPIError(http.StatusBadRequest, "E_INVALID_PARAM", wrappedMessage(err, apperr.ErrBadRequest, "bad request"), nil)
	}
	return nil
}

// wrappedMessage strips the sentinel suffix goerr appends on Wrap.
func wrappedMessage(err, sentinel error, fallback string) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	return lo.Ternary(msg != "" && msg != err.Error(), msg, fallback)
}

// ErrorHandler returns a Fiber error handler that emits unified error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Fiber error
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":      fe.Message,
				"code":       httpStatusToCode(fe.Code),
				"message":    fe.Message,
				"request_id": RequestID(c),
			})
		}

		if ae := Translate(err); ae != nil {
			body := fiber.Map{
				"error":      ae.Message,
				"code":       ae.Code,
				"message":    ae.Message,
				"request_id": RequestID(c),
			}
			if ae.Details != nil {
				body["details"] = ae.Details
			}
			if verr, ok := apperr.AsValidation(err); ok {
				body["fields"] = verr.Fields
			}
			if ae.HTTPStatus >= http.StatusInternalServerError {
				kitLogger.Error("request failed", zap.Error(err), zap.String("path", c.Path()))
			} else {
				kitLogger.Debug("request rejected", zap.Error(err), zap.String("path", c.Path()))
			}
			return c.Status(ae.HTTPStatus).JSON(body)
		}

		// Fallback
		kitLogger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error":      "internal server error",
			"code":       "E_INTERNAL",
			"message":    "Internal Server Error",
			"request_id": RequestID(c),
		})
	}
}

func httpStatusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "E_INVALID_PARAM"
	case http.StatusNotFound:
		return "E_NOT_FOUND"
	case http.StatusUnauthorized:
		return "E_UNAUTHORIZED"
	case http.StatusForbidden:
		return "E_FORBIDDEN"
	case http.StatusConflict:
		return "E_CONFLICT"
	case http.StatusTooManyRequests:
		return "E_RATE_LIMITED"
	default:
		if status >= 500 {
			return "E_INTERNAL"
		}
		return "E_UNKNOWN"
	}
}
