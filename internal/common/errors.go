package common

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Structural upload errors. Any of these aborts a validate or confirm call
// before rows are processed or anything is persisted.
var (
	ErrUnreadableWorkbook = errors.New("file is not a readable Excel workbook")
	ErrWorksheetNotFound  = errors.New("no worksheet found in Excel file")
	ErrInvalidHeaders     = errors.New("invalid Excel headers")
	ErrNoValidData        = errors.New("no valid data found in Excel file")
)

// InvalidHeadersError carries the expected and the extracted header labels.
type InvalidHeadersError struct {
	Expected []string
	Actual   []string
	Missing  []string
}

func (e *InvalidHeadersError) Error() string {
	return fmt.Sprintf("%v. Expected: [%s], Found: [%s]",
		ErrInvalidHeaders, strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
}

func (e *InvalidHeadersError) Is(target error) bool {
	return target == ErrInvalidHeaders
}

// IsStructural reports whether err is a file-level upload failure the client caused.
func IsStructural(err error) bool {
	return errors.Is(err, ErrUnreadableWorkbook) ||
		errors.Is(err, ErrWorksheetNotFound) ||
		errors.Is(err, ErrInvalidHeaders) ||
		errors.Is(err, ErrNoValidData)
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps service errors onto gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case IsStructural(err), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	default:
		return InternalError(err.Error())
	}
}
