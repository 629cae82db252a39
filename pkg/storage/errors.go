package storage

import (
	"errors"
	"fmt"
	"io/fs"
)

const (
	ErrorInvalidPath      = "invalid_path"
	ErrorOutsideDirectory = "outside_directory"
	ErrorPermissionDenied = "permission_denied"
	ErrorIO               = "io_error"
)

// Error is a categorized filesystem failure safe to surface in logs and summaries.
type Error struct {
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

// NewError creates a categorized storage error.
func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// CategoryFromError returns the category of err, mapping plain OS errors when needed.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	if errors.Is(err, fs.ErrPermission) {
		return ErrorPermissionDenied
	}

	return ErrorIO
}
