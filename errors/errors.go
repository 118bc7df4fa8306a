package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error. For API failures it is the EC2 error code
// rendered to clients.
type ErrorType string

const (
	// Configuration errors
	ErrConfigParse   ErrorType = "CONFIG_PARSE_ERROR"
	ErrConfigInvalid ErrorType = "CONFIG_INVALID_ERROR"

	// Process errors
	ErrServer    ErrorType = "SERVER_ERROR"
	ErrSeed      ErrorType = "SEED_ERROR"
	ErrIntegrity ErrorType = "INTEGRITY_ERROR"
	ErrAWSClient ErrorType = "AWS_CLIENT_ERROR"

	// EC2 API errors
	ErrMissingParameter       ErrorType = "MissingParameter"
	ErrInvalidParameterValue  ErrorType = "InvalidParameterValue"
	ErrInvalidParameter       ErrorType = "InvalidParameter"
	ErrInvalidParameterCombo  ErrorType = "InvalidParameterCombination"
	ErrDependencyViolation    ErrorType = "DependencyViolation"
	ErrIncorrectState         ErrorType = "IncorrectState"
	ErrIncorrectInstanceState ErrorType = "IncorrectInstanceState"
	ErrOperationNotPermitted  ErrorType = "OperationNotPermitted"
	ErrUnsupportedOperation   ErrorType = "UnsupportedOperation"
	ErrInvalidAction          ErrorType = "InvalidAction"
	ErrInvalidID              ErrorType = "InvalidID"
	ErrInternal               ErrorType = "InternalError"
)

// CustomError represents a custom error with additional context
type CustomError struct {
	Type       ErrorType
	Message    string
	Context    map[string]interface{}
	WrappedErr error
}

// New creates a new custom error
func New(errorType ErrorType, message string, context map[string]interface{}, wrappedErr error) *CustomError {
	return &CustomError{
		Type:       errorType,
		Message:    message,
		Context:    context,
		WrappedErr: wrappedErr,
	}
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.WrappedErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.WrappedErr)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *CustomError) Unwrap() error {
	return e.WrappedErr
}

// Code returns the error code as a plain string.
func (e *CustomError) Code() string {
	return string(e.Type)
}

// Is checks if the error is of a specific type
func Is(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr.Type == errType
	}

	return false
}

// As returns the first CustomError in err's chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// API builds an EC2 API error with no extra context.
func API(errorType ErrorType, format string, args ...interface{}) *CustomError {
	return New(errorType, fmt.Sprintf(format, args...), nil, nil)
}

// MissingParameter reports a required request parameter that was absent or empty.
func MissingParameter(name string) *CustomError {
	return New(ErrMissingParameter,
		fmt.Sprintf("The request must contain the parameter %s", name),
		map[string]interface{}{"parameter": name}, nil)
}

// InvalidValue reports a parameter whose value cannot be accepted.
func InvalidValue(name, value, reason string) *CustomError {
	return New(ErrInvalidParameterValue,
		fmt.Sprintf("Value (%s) for parameter %s is invalid. %s", value, name, reason),
		map[string]interface{}{"parameter": name, "value": value}, nil)
}

// NotFound reports ids that do not resolve in their store. code is the kind specific
// NotFound code, noun the human readable kind name ("instance ID").
func NotFound(code ErrorType, noun string, ids ...string) *CustomError {
	var msg string
	if len(ids) == 1 {
		msg = fmt.Sprintf("The %s '%s' does not exist", noun, ids[0])
	} else {
		msg = fmt.Sprintf("The %ss '%s' do not exist", noun, strings.Join(ids, ", "))
	}
	return New(code, msg, map[string]interface{}{"ids": ids}, nil)
}

// DependencyViolation reports a delete refused because dependents still exist.
func DependencyViolation(id, dependentKind string, dependents []string) *CustomError {
	return New(ErrDependencyViolation,
		fmt.Sprintf("The resource '%s' has a dependent %s (%s) and cannot be deleted.", id, dependentKind, strings.Join(dependents, ", ")),
		map[string]interface{}{"id": id, "dependents": dependents}, nil)
}
