package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("validation error")
	// ErrRegistryClosed is returned by acquisitions after shutdown started.
	ErrRegistryClosed = errors.New("connection registry is closed")
	// ErrDuplicate reports a uniqueness violation, e.g. a repeated serial number.
	ErrDuplicate = errors.New("resource already exists")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	Key    string
}

// NewNotFound creates a NotFoundError
func NewNotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError carries a field-level, user-correctable message.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConnectionUnavailableError means the registry gave up connecting to a
// tenant database. The caller may retry later.
type ConnectionUnavailableError struct {
	Tenant   string
	Attempts int
	Err      error
}

func (e *ConnectionUnavailableError) Error() string {
	return fmt.Sprintf("connection to tenant %q unavailable after %d attempts: %v", e.Tenant, e.Attempts, e.Err)
}

func (e *ConnectionUnavailableError) Unwrap() error { return e.Err }

// ConflictingActiveShipmentError is raised when a mutating action targets an
// item that is still travelling. It must not be retried automatically.
type ConflictingActiveShipmentError struct {
	ProductID    uuid.UUID
	SerialNumber string
	ShipmentID   *uuid.UUID
}

func (e *ConflictingActiveShipmentError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "product %s", e.ProductID)
	if e.SerialNumber != "" {
		fmt.Fprintf(&b, " (serial %s)", e.SerialNumber)
	}
	b.WriteString(" is part of an active shipment")
	if e.ShipmentID != nil {
		fmt.Fprintf(&b, " %s", e.ShipmentID)
	}
	b.WriteString("; resolve the shipment before moving it")
	return b.String()
}

// MissingAddressError lists the address fields a party is missing.
type MissingAddressError struct {
	Party  string
	Fields []string
}

func (e *MissingAddressError) Error() string {
	return fmt.Sprintf("%s is missing address fields: %s", e.Party, strings.Join(e.Fields, ", "))
}

func (e *MissingAddressError) Unwrap() error { return ErrValidation }

// BatchError aborts a bulk relocation and names the failing item.
type BatchError struct {
	Index     int
	ProductID uuid.UUID
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk relocation aborted at item %d (product %s): %v", e.Index, e.ProductID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ProjectionFailure is logged when the global projector fails after the
// tenant transaction committed. It never fails the original operation.
type ProjectionFailure struct {
	Tenant    string
	ProductID uuid.UUID
	Err       error
}

func (e *ProjectionFailure) Error() string {
	return fmt.Sprintf("projection of product %s for tenant %q failed: %v", e.ProductID, e.Tenant, e.Err)
}

func (e *ProjectionFailure) Unwrap() error { return e.Err }
