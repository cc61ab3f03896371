// Package archerr defines the error taxonomy shared by the estimation and
// forecasting packages.
package archerr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeConfiguration       = "CONFIGURATION_ERROR"
	CodeInvalidParameter    = "INVALID_PARAMETER"
	CodeInsufficientHistory = "INSUFFICIENT_HISTORY"
	CodeUnsupportedForecast = "UNSUPPORTED_FORECAST_METHOD"
	CodeShapeMismatch       = "SHAPE_MISMATCH"
	CodeNumerical           = "NUMERICAL_FAILURE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Every Error built by the constructors below
// unwraps to one of these.
var (
	ErrConfiguration       = errors.New("configuration error")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrUnsupportedForecast = errors.New("unsupported forecast method")
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrNumerical           = errors.New("numerical failure")
)

// Error is a coded error carrying an optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error returns the message followed by the cause.
func (e *Error) Error() string {
	if e.Cause != nil && !isSentinel(e.Cause) {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

func isSentinel(err error) bool {
	switch err {
	case ErrConfiguration, ErrInvalidParameter, ErrInsufficientHistory,
		ErrUnsupportedForecast, ErrShapeMismatch, ErrNumerical:
		return true
	}
	return false
}

func newf(code string, sentinel error, format string, args ...any) error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   sentinel,
	}
}

// Configuration reports an invalid model structure detected at construction.
func Configuration(format string, args ...any) error {
	return newf(CodeConfiguration, ErrConfiguration, format, args...)
}

// InvalidParameter reports a parameter vector outside a component's domain.
func InvalidParameter(format string, args ...any) error {
	return newf(CodeInvalidParameter, ErrInvalidParameter, format, args...)
}

// InsufficientHistory reports a forecast origin or lag requirement that
// exceeds the available data.
func InsufficientHistory(format string, args ...any) error {
	return newf(CodeInsufficientHistory, ErrInsufficientHistory, format, args...)
}

// UnsupportedForecast reports a forecast method the model cannot provide.
func UnsupportedForecast(format string, args ...any) error {
	return newf(CodeUnsupportedForecast, ErrUnsupportedForecast, format, args...)
}

// ShapeMismatch reports inconsistent input dimensions.
func ShapeMismatch(format string, args ...any) error {
	return newf(CodeShapeMismatch, ErrShapeMismatch, format, args...)
}

// Numerical reports corrupted arithmetic: non-positive variances, NaN
// likelihoods or singular matrices.
func Numerical(format string, args ...any) error {
	return newf(CodeNumerical, ErrNumerical, format, args...)
}

// Wrap adds context to err while keeping its code.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return &Error{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &Error{
		Code:    CodeInternal,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps err with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost Error in err's chain, or
// "UNKNOWN".
func GetCode(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}
