// Package errors labels errors for logs and metrics: one low-cardinality
// string per failure class, so dashboards can group by cause.
package errors

import (
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/openmesh/meshgate/internal/errors"
)

// Classify returns a stable label for err. Errors from the gateway's own
// taxonomy label as their code ("backend_timeout", "route_not_found", ...);
// anything else labels as the innermost concrete type, snake_cased.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		return string(appErr.Code)
	}

	return typeLabel(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeLabel(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	label := strings.ToLower(t.String())
	label = strings.ReplaceAll(label, "*", "")
	label = strings.ReplaceAll(label, ".", "_")
	if label == "" {
		return "unknown"
	}
	return label
}
