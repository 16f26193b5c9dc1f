package darwincore

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound matches *FileNotFoundError.
	ErrFileNotFound = errors.New("source file not found")
	// ErrSourceFormat matches *SourceFormatError.
	ErrSourceFormat = errors.New("unexpected source format")
	// ErrValidation matches *ValidationError.
	ErrValidation = errors.New("row validation failed")
)

// FileNotFoundError is returned when a source path does not resolve.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

func (e *FileNotFoundError) Is(target error) bool { return target == ErrFileNotFound }

func (e *FileNotFoundError) Unwrap() error { return e.Err }

// SourceFormatError is returned when a source file lacks the expected structure,
// such as a GeoPackage without the occurrence table.
type SourceFormatError struct {
	Path   string
	Detail string
}

func (e *SourceFormatError) Error() string {
	return fmt.Sprintf("invalid source %s: %s", e.Path, e.Detail)
}

func (e *SourceFormatError) Is(target error) bool { return target == ErrSourceFormat }

// ValidationError rejects a single row. The import counts it and moves on.
type ValidationError struct {
	Kind    string
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsRowError reports whether err only affects the current row.
func IsRowError(err error) bool {
	return errors.Is(err, ErrValidation)
}
