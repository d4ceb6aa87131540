package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError is returned for malformed or semantically invalid input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InsufficientStockError is returned when an OUT movement would drive a
// balance below zero
type InsufficientStockError struct {
	IngredientID string
	Ingredient   string
	Unit         string
	Required     decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough %s (need %s %s, have %s %s)",
		e.Ingredient, e.Required.String(), e.Unit, e.Available.String(), e.Unit)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// notFoundOr converts gorm.ErrRecordNotFound into a NotFoundError and wraps anything else
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return fmt.Errorf("load %s %s: %w", resource, id, err)
}

// IsClientError reports whether err should be surfaced to the caller as-is
func IsClientError(err error) bool {
	var notFound *NotFoundError
	var validation *ValidationError
	var stock *InsufficientStockError
	return errors.As(err, &notFound) || errors.As(err, &validation) || errors.As(err, &stock)
}
