package model

import (
	"fmt"
	"strings"
)

// Standard error codes for API responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeConflict           = "CONCURRENT_MODIFICATION"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// FieldError describes one bad field in a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates request-shape failures. It is returned before
// any I/O happens.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// LineError describes why one requested order line was rejected. Code is
// ErrCodeProductUnavailable or ErrCodeInsufficientStock; Requested and
// Available are set only for the latter.
type LineError struct {
	ProductID int64  `json:"productId"`
	Code      string `json:"code"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

// PricingError collects every per-line rejection from a single validation
// pass, so the caller sees the complete report rather than one failure per
// retry.
type PricingError struct {
	Lines []LineError `json:"lines"`
}

func (e *PricingError) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		switch l.Code {
		case ErrCodeInsufficientStock:
			msgs[i] = fmt.Sprintf("product %d: requested %d, only %d in stock", l.ProductID, l.Requested, l.Available)
		default:
			msgs[i] = fmt.Sprintf("product %d: unavailable", l.ProductID)
		}
	}
	return "order rejected: " + strings.Join(msgs, "; ")
}

// NotFoundError signals an unknown entity id.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       int64  `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// InvalidTransitionError is the state machine's rejection of a requested
// status change. ValidNext lists the transitions that would have been
// accepted from Current, so callers can render an actionable message.
type InvalidTransitionError struct {
	Current   Status   `json:"current"`
	Requested Status   `json:"requested"`
	ValidNext []Status `json:"validNext"`
}

func (e *InvalidTransitionError) Error() string {
	if len(e.ValidNext) == 0 {
		return fmt.Sprintf("cannot move order from terminal status %q", e.Current)
	}
	next := make([]string, len(e.ValidNext))
	for i, s := range e.ValidNext {
		next[i] = string(s)
	}
	return fmt.Sprintf("cannot move order from %q to %q (valid: %s)",
		e.Current, e.Requested, strings.Join(next, ", "))
}

// ConcurrentModificationError signals that another actor changed the order's
// status between our read and our conditional write, and the single retry
// also lost.
type ConcurrentModificationError struct {
	OrderID int64 `json:"orderId"`
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("order %d was modified concurrently, please retry", e.OrderID)
}
