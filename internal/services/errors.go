package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNoIdentity       = errors.New("no provider identity")
	ErrQuery            = errors.New("library query failed")
	ErrMerge            = errors.New("merge failed")
	ErrConfiguration    = errors.New("configuration error")
	ErrTransient        = errors.New("transient failure")
)

// Wrap builds an error message that includes pipeline context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, pipeline, operation, message string, err error) error {
	detail := buildDetail(pipeline, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a pipeline error to the status code the webhook server
// answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func buildDetail(pipeline, operation, message string) string {
	parts := make([]string, 0, 3)
	if pipeline = strings.TrimSpace(pipeline); pipeline != "" {
		parts = append(parts, pipeline)
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
