package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryStore          ErrorCategory = "store"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeFileUnsupported ErrorCode = "file_unsupported"
	CodeFileCorrupted   ErrorCode = "file_corrupted"

	// Parse errors
	CodeRowParse      ErrorCode = "row_parse_error"
	CodeMissingKey    ErrorCode = "missing_key"
	CodeHeaderMissing ErrorCode = "header_missing"
	CodeEncodingError ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"

	// Store errors
	CodeStoreWrite      ErrorCode = "store_write"
	CodeStoreRead       ErrorCode = "store_read"
	CodeStoreConnection ErrorCode = "store_connection"

	// Reconciliation errors
	CodeDuplicateUpload ErrorCode = "duplicate_upload"
	CodeProcessingError ErrorCode = "processing_error"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// FinanceError is the base error type for all application errors
type FinanceError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *FinanceError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *FinanceError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *FinanceError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryStore:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *FinanceError) WithContext(key string, value interface{}) *FinanceError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *FinanceError) WithSuggestion(suggestion string) *FinanceError {
	e.Suggestion = suggestion
	return e
}

// New creates a new FinanceError
func New(category ErrorCategory, code ErrorCode, message string) *FinanceError {
	return &FinanceError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with FinanceError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *FinanceError {
	if err == nil {
		return nil
	}

	return &FinanceError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *FinanceError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileUnsupported:
		message = fmt.Sprintf("unsupported file type: %s", path)
		suggestion = "export the sheet as .xlsx or .csv and retry"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "re-export the file from the marketplace panel and retry"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// RowParseError creates an error for a cell that could not be coerced.
// Importers record these and continue with zero values substituted.
func RowParseError(file string, line int, column string, value string, err error) *FinanceError {
	message := fmt.Sprintf("unparseable value in file %s at row %d, column '%s': '%s'", file, line, column, value)

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryParse, CodeRowParse, message)
	} else {
		result = New(CategoryParse, CodeRowParse, message)
	}

	return result.
		WithSuggestion("the value was replaced with zero; correct the cell if the amount matters").
		WithContext("file", file).
		WithContext("row", line).
		WithContext("column", column).
		WithContext("value", value)
}

// MissingKeyError creates an error for a row with no resolvable order number.
// Importers skip these rows and count them.
func MissingKeyError(file string, line int) *FinanceError {
	message := fmt.Sprintf("row %d in file %s has no order number", line, file)

	return New(CategoryParse, CodeMissingKey, message).
		WithSuggestion("ensure every row carries an order number column").
		WithContext("file", file).
		WithContext("row", line)
}

// HeaderError creates an error for a sheet without a recognizable header row
func HeaderError(file string, missing []string) *FinanceError {
	message := fmt.Sprintf("no recognizable header row in file %s (looked for: %s)", file, strings.Join(missing, ", "))

	return New(CategoryParse, CodeHeaderMissing, message).
		WithSuggestion("verify the export contains the standard marketplace column headers").
		WithContext("file", file).
		WithContext("expected_headers", missing)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *FinanceError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be numeric, Turkish or English locale (e.g. '1.234,56')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use DD.MM.YYYY, DD.MM.YYYY HH:MM or an Excel serial date"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// StoreError creates a persistence-related error. Imports abort on these.
func StoreError(code ErrorCode, operation string, err error) *FinanceError {
	var message string
	var suggestion string

	switch code {
	case CodeStoreWrite:
		message = fmt.Sprintf("database write failed during %s", operation)
		suggestion = "check database availability; the import was aborted and can be retried"
	case CodeStoreRead:
		message = fmt.Sprintf("database read failed during %s", operation)
		suggestion = "check database availability and retry"
	case CodeStoreConnection:
		message = fmt.Sprintf("could not connect to the database during %s", operation)
		suggestion = "verify the DSN settings (FINANCE_DB_* environment variables)"
	default:
		message = fmt.Sprintf("store error during %s", operation)
		suggestion = "check the database and retry"
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryStore, code, message)
	} else {
		result = New(CategoryStore, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *FinanceError {
	var message string
	var suggestion string

	switch code {
	case CodeDuplicateUpload:
		message = fmt.Sprintf("duplicate upload detected during %s", operation)
		suggestion = "this file was already imported; pass --force to import it again"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the logs for the failing order keys and retry"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryReconciliation, code, message)
	} else {
		result = New(CategoryReconciliation, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *FinanceError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, environment variable or .env file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *FinanceError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*FinanceError       `json:"errors"`
	SampleErrors []*FinanceError       `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errors []*FinanceError) *ErrorSummary {
	if len(errors) == 0 {
		return &ErrorSummary{
			Total:      0,
			ByCategory: make(map[ErrorCategory]int),
			ByCode:     make(map[ErrorCode]int),
			Errors:     []*FinanceError{},
		}
	}

	summary := &ErrorSummary{
		Total:      len(errors),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errors,
	}

	for _, err := range errors {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errors) > maxSamples {
		summary.SampleErrors = errors[:maxSamples]
	} else {
		summary.SampleErrors = errors
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	count, exists := es.ByCode[code]
	return exists && count > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsFinanceError checks if an error is a FinanceError
func IsFinanceError(err error) bool {
	_, ok := err.(*FinanceError)
	return ok
}

// AsFinanceError extracts a FinanceError from an error chain
func AsFinanceError(err error) (*FinanceError, bool) {
	var financeErr *FinanceError
	if errors.As(err, &financeErr) {
		return financeErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a FinanceError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *FinanceError {
	if err == nil {
		return nil
	}

	if financeErr, ok := AsFinanceError(err); ok {
		return financeErr
	}

	return Wrap(err, category, code, message)
}
