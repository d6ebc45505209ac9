package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures the way callers need to react to them.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindSoldOut           Kind = "sold_out"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindInvalidSignature  Kind = "invalid_signature"
	KindExpiredCredential Kind = "expired_credential"
	KindPromoIneligible   Kind = "promo_ineligible"
	KindPaymentRejected   Kind = "payment_rejected"
	KindContention        Kind = "contention"
	KindInternal          Kind = "internal"
)

// Error is the application error carried across service boundaries.
// Message is always safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// Available is set on sold_out errors so the caller can render
	// the true remaining quantity ("Only 3 VIP tickets available").
	Available int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an application error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an application error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to an application error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// SoldOut creates a sold_out error carrying the tier's true available count.
func SoldOut(tierName string, available int) *Error {
	return &Error{
		Kind:      KindSoldOut,
		Message:   fmt.Sprintf("Only %d %s tickets available", available, tierName),
		Available: available,
	}
}

// KindOf extracts the error kind, defaulting to internal for plain errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error kind to the HTTP status the controllers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindPromoIneligible:
		return http.StatusBadRequest
	case KindSoldOut:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusForbidden
	case KindInvalidSignature, KindExpiredCredential:
		return http.StatusUnprocessableEntity
	case KindPaymentRejected:
		return http.StatusPaymentRequired
	case KindContention:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
