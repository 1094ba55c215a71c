package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrEncodingFailure    = errors.New("encoding failure")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrChannelUnavailable = errors.New("channel unavailable")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrEncodingFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Message extracts the human-readable portion of a wrapped error, without the
// sentinel prefix, suitable for persistence on a failed job.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	for _, sentinel := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrConflict,
		ErrEncodingFailure,
		ErrPersistenceFailure,
		ErrChannelUnavailable,
	} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(text, prefix) {
			return strings.TrimPrefix(text, prefix)
		}
	}
	return text
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
