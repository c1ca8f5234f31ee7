// Package validation checks caller-supplied values at component boundaries.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alphamachine/engine/internal/errs"
)

// ValidationError describes a single invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all invalid fields of a request
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator collects field errors across a request
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates an empty validator
func NewValidator() *Validator {
	return &Validator{}
}

// AddError records a field error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any field failed
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Err returns the collected errors as a BadInput error, or nil
func (v *Validator) Err(op string) error {
	if !v.HasErrors() {
		return nil
	}
	return errs.E(errs.KindBadInput, op, v.errors)
}

// Positive requires value > 0
func (v *Validator) Positive(field string, value float64) {
	if value <= 0 {
		v.AddError(field, "must be positive")
	}
}

// MinValue requires value >= min
func (v *Validator) MinValue(field string, value, min float64) {
	if value < min {
		v.AddError(field, fmt.Sprintf("must be at least %v", min))
	}
}

// OneOf requires value to be in the allowed set
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// DateRange requires start before end
func (v *Validator) DateRange(field string, start, end time.Time) {
	if start.IsZero() || end.IsZero() {
		v.AddError(field, "start and end are required")
		return
	}
	if !start.Before(end) {
		v.AddError(field, "start must be before end")
	}
}

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Ticker validates a ticker symbol: uppercase alphabetic, 1-5 characters.
// Invalid tickers are rejected before any network call is made.
func Ticker(ticker string) error {
	if !tickerPattern.MatchString(ticker) {
		return errs.BadInputf("validation.ticker", "invalid ticker %q: must be 1-5 uppercase letters", ticker)
	}
	return nil
}

// Tickers validates a batch of ticker symbols
func Tickers(tickers []string) error {
	if len(tickers) == 0 {
		return errs.BadInputf("validation.tickers", "at least one ticker is required")
	}
	for _, t := range tickers {
		if err := Ticker(t); err != nil {
			return err
		}
	}
	return nil
}

// SignalStatuses are the legal signal lifecycle states
var SignalStatuses = []string{"PENDING", "APPROVED", "EXECUTED", "CLOSED"}

// Status validates a signal lifecycle status value
func Status(status string) error {
	for _, s := range SignalStatuses {
		if status == s {
			return nil
		}
	}
	return errs.BadInputf("validation.status", "unknown status %q", status)
}

// AllocationModes are the supported backtest allocation strategies
var AllocationModes = []string{"CORE_FOCUS", "BALANCED", "DIVERSIFIED"}

// AllocationMode validates a backtest allocation mode
func AllocationMode(mode string) error {
	for _, m := range AllocationModes {
		if mode == m {
			return nil
		}
	}
	return errs.BadInputf("validation.allocation_mode", "unknown allocation mode %q", mode)
}
