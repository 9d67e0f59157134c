package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RowErrorCollector accumulates non-fatal row-level errors during an import.
// Parse errors never abort an import; they are collected here and surfaced
// on the upload log entry.
type RowErrorCollector struct {
	errors    []*FinanceError
	byCode    map[ErrorCode]int
	maxErrors int
	truncated int
}

// NewRowErrorCollector creates a collector that keeps at most maxErrors
// entries. Errors past the cap are counted but not retained.
func NewRowErrorCollector(maxErrors int) *RowErrorCollector {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &RowErrorCollector{
		errors:    make([]*FinanceError, 0),
		byCode:    make(map[ErrorCode]int),
		maxErrors: maxErrors,
	}
}

// Add records an error. Nil errors are ignored. Per-code counts keep
// running past the retention cap.
func (c *RowErrorCollector) Add(err *FinanceError) {
	if err == nil {
		return
	}
	c.byCode[err.Code]++
	if len(c.errors) >= c.maxErrors {
		c.truncated++
		return
	}
	c.errors = append(c.errors, err)
}

// HasErrors returns true if any errors have been collected
func (c *RowErrorCollector) HasErrors() bool {
	return len(c.errors) > 0 || c.truncated > 0
}

// Count returns the total number of errors seen, including truncated ones
func (c *RowErrorCollector) Count() int {
	return len(c.errors) + c.truncated
}

// CountByCode returns how many errors carried the given code, truncated
// ones included
func (c *RowErrorCollector) CountByCode(code ErrorCode) int {
	return c.byCode[code]
}

// Errors returns the retained errors
func (c *RowErrorCollector) Errors() []*FinanceError {
	return c.errors
}

// Summary returns an error summary for the retained errors
func (c *RowErrorCollector) Summary() *ErrorSummary {
	return NewErrorSummary(c.errors)
}

// FormatForUser renders the collected errors in a terminal-friendly way,
// grouped by file, with at most a few detailed entries per file.
func (c *RowErrorCollector) FormatForUser() string {
	if !c.HasErrors() {
		return "No row errors"
	}

	errorsByFile := make(map[string][]*FinanceError)
	var fileOrder []string
	for _, err := range c.errors {
		file := "unknown"
		if v, ok := err.Context["file"]; ok {
			file = filepath.Base(fmt.Sprintf("%v", v))
		}
		if _, seen := errorsByFile[file]; !seen {
			fileOrder = append(fileOrder, file)
		}
		errorsByFile[file] = append(errorsByFile[file], err)
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d row errors:", c.Count()))

	const maxDetailed = 3
	for _, file := range fileOrder {
		fileErrors := errorsByFile[file]
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("File: %s (%d errors)", file, len(fileErrors)))
		for i, err := range fileErrors {
			if i == maxDetailed {
				lines = append(lines, fmt.Sprintf("  ... and %d more errors in this file", len(fileErrors)-maxDetailed))
				break
			}
			lines = append(lines, "  "+err.Error())
		}
	}
	if c.truncated > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("(%d further errors not retained)", c.truncated))
	}

	return strings.Join(lines, "\n")
}
