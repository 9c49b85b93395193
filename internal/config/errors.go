package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports configuration that must halt a run before any
// record is processed: a bad ICP weight table, a malformed benchmark
// file, an invalid filter pattern, or missing credentials.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// IsValidationError reports whether err (or any error it wraps) is a
// *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
