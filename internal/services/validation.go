package services

import (
	"fmt"
	"time"
)

// ValidationError reports a single rejected input field. Handlers surface it as
// a 400 with field-level detail.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalidField(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// validateISBN enforces the catalog's ISBN shape: ASCII digits only, exactly
// 10 or 13 of them. Runs before any store write.
func validateISBN(isbn string) *ValidationError {
	if len(isbn) != 10 && len(isbn) != 13 {
		return invalidField("isbn", "ISBN must be 10 or 13 digits long")
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return invalidField("isbn", "ISBN must contain only digits")
		}
	}
	return nil
}

func validatePublishedDate(d *time.Time, now time.Time) *ValidationError {
	if d != nil && d.After(now) {
		return invalidField("published_date", "publication date cannot be in the future")
	}
	return nil
}
