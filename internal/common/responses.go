package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ActorIDHeader carries the identifier of the user performing a mutation.
const ActorIDHeader = "X-Actor-ID"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendError maps the core error taxonomy onto an HTTP response.
func SendError(c echo.Context, err error) error {
	var (
		conflict    *ConflictingActiveShipmentError
		unavailable *ConnectionUnavailableError
		batch       *BatchError
		validation  *ValidationError
		missing     *MissingAddressError
	)

	details := map[string]string{}
	if errors.As(err, &batch) {
		details["index"] = fmt.Sprintf("%d", batch.Index)
		details["product_id"] = batch.ProductID.String()
	}

	switch {
	case errors.As(err, &conflict):
		if conflict.ShipmentID != nil {
			details["shipment_id"] = conflict.ShipmentID.String()
		}
		return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICTING_ACTIVE_SHIPMENT", err.Error(), details))
	case errors.As(err, &missing):
		details["missing_fields"] = strings.Join(missing.Fields, ",")
		return c.JSON(http.StatusUnprocessableEntity, CreateErrorResponse("MISSING_ADDRESS", err.Error(), details))
	case errors.As(err, &validation):
		if validation.Field != "" {
			details[validation.Field] = validation.Message
		}
		return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", err.Error(), details))
	case errors.Is(err, ErrValidation):
		return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", err.Error(), details))
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", err.Error(), details))
	case errors.Is(err, ErrDuplicate):
		return c.JSON(http.StatusConflict, CreateErrorResponse("DUPLICATE", err.Error(), details))
	case errors.As(err, &unavailable), errors.Is(err, ErrRegistryClosed):
		return c.JSON(http.StatusServiceUnavailable, CreateErrorResponse("CONNECTION_UNAVAILABLE", err.Error(), details))
	default:
		return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", "internal error", nil))
	}
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// ValidateUUID parses a path or query identifier.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, NewValidation(fieldName, "is required")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, NewValidation(fieldName, "must be a valid UUID")
	}
	return id, nil
}
