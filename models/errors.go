package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when a record exists but belongs to someone else.
var ErrForbidden = errors.New("forbidden")

// NotFoundError names the entity that could not be found.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

var (
	ErrProductNotFound  = &NotFoundError{Entity: "product"}
	ErrCategoryNotFound = &NotFoundError{Entity: "category"}
	ErrBrandNotFound    = &NotFoundError{Entity: "brand"}
	ErrCouponNotFound   = &NotFoundError{Entity: "coupon"}
	ErrCartItemNotFound = &NotFoundError{Entity: "cart item"}
	ErrOrderNotFound    = &NotFoundError{Entity: "order"}
	ErrUserNotFound     = &NotFoundError{Entity: "user"}
	ErrAddressNotFound  = &NotFoundError{Entity: "address"}
	ErrServiceNotFound  = &NotFoundError{Entity: "service"}
	ErrProviderNotFound = &NotFoundError{Entity: "service provider"}
	ErrBookingNotFound  = &NotFoundError{Entity: "booking"}
)

// RuleError is a business rule violation. Handlers answer it with 422.
type RuleError struct {
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Rule builds a RuleError for field with a formatted message.
func Rule(field, format string, args ...any) *RuleError {
	return &RuleError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsRuleError reports whether err carries a business rule violation.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// notFound maps gorm.ErrRecordNotFound to the entity specific error.
func notFound(err error, target *NotFoundError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}
