package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// ErrConfirmationRequired rejects a delete that skipped the confirm step.
var ErrConfirmationRequired = errors.New("deleting a dashboard requires confirm=1")

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// badRequestError marks request decoding failures.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// BadRequest wraps a binding or parsing error so it maps to 400.
func BadRequest(err error) error { return &badRequestError{err: err} }

// ErrorHandler turns the last error attached with c.Error into a JSON
// ErrorResponse. Handlers attach the error and return without writing.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			statusCode, code := Classify(err)

			resp := ErrorResponse{Error: err.Error(), Code: code}
			if details := extractDetails(err); details != nil {
				resp.Details = details
			}

			logError(log, statusCode, err, c)
			c.JSON(statusCode, resp)
			return
		}

		// status set without a body: still answer in the standard shape
		if c.Writer.Status() >= 400 && !c.Writer.Written() {
			statusCode := c.Writer.Status()
			resp := ErrorResponse{
				Error: http.StatusText(statusCode),
				Code:  determineErrorCodeFromStatus(statusCode),
			}
			log.Warn("HTTP Error Response",
				"status", statusCode,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.JSON(statusCode, resp)
		}
	}
}

// Classify maps a domain error to its HTTP status and machine-readable
// code. The edit session websocket uses the same codes.
func Classify(err error) (int, string) {
	var bad *badRequestError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &bad):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, ErrConfirmationRequired):
		return http.StatusBadRequest, "CONFIRMATION_REQUIRED"
	case errors.Is(err, models.ErrUnknownTemplate):
		return http.StatusBadRequest, "UNKNOWN_TEMPLATE"
	case errors.Is(err, models.ErrLayoutMismatch):
		return http.StatusBadRequest, "LAYOUT_MISMATCH"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrDuplicateWidget):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, models.ErrPersistence):
		return http.StatusServiceUnavailable, "PERSISTENCE_UNAVAILABLE"
	case isValidation(err):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

var validationErrors = []error{
	models.ErrEmptyID,
	models.ErrInvalidGridCoordinates,
	models.ErrInvalidGridDimensions,
	models.ErrInvalidGridConstraints,
	models.ErrUnknownChartKind,
	models.ErrInvalidLegendPosition,
	models.ErrTopNOutOfRange,
	models.ErrEmptySeries,
	models.ErrMalformedDataset,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// extractDetails exposes the structured part of a layout mismatch.
func extractDetails(err error) interface{} {
	var mismatch *models.LayoutMismatchError
	if errors.As(err, &mismatch) {
		return gin.H{"missing": mismatch.Missing, "unexpected": mismatch.Unexpected}
	}
	return nil
}

// determineErrorCodeFromStatus creates error code from HTTP status
func determineErrorCodeFromStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case http.StatusInternalServerError:
		return "INTERNAL_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// logError logs errors with appropriate level
func logError(log logger.Logger, statusCode int, err error, c *gin.Context) {
	fields := []interface{}{
		"status", statusCode,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client_ip", c.ClientIP(),
		"error", err.Error(),
	}
	if requestID := c.Request.Header.Get("X-Request-ID"); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if id := c.GetString("dashboard_id"); id != "" {
		fields = append(fields, "dashboard_id", id)
	}

	if statusCode >= 500 {
		log.Error("HTTP Error", fields...)
	} else {
		log.Warn("HTTP Error", fields...)
	}
}
