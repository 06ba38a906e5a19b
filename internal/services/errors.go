package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrMedia             = errors.New("media error")
	ErrInference         = errors.New("inference error")
	ErrInvalidTier       = errors.New("invalid tier")
	ErrStorage           = errors.New("storage error")
	ErrNotFound          = errors.New("not found")
	ErrNotReady          = errors.New("not ready")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrTimeout           = errors.New("timeout")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above. A nil marker yields an unclassified error.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error onto the response code the API returns.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTier):
		return http.StatusBadRequest
	case errors.Is(err, ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Hint suggests the operator's next step for a classified error.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return "check the folder path or Drive link and source.drive_api_key"
	case errors.Is(err, ErrMedia):
		return "check that ffmpeg and ffprobe are installed and the file is valid audio"
	case errors.Is(err, ErrInference):
		return "check inference.api_key and the daily quota with 'mediabatch usage show'"
	case errors.Is(err, ErrStorage):
		return "check permissions on paths.data_dir and paths.output_dir"
	case errors.Is(err, ErrConfiguration):
		return "run 'mediabatch config validate'"
	default:
		return "check logs for details"
	}
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
