package atlassian

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies a structured error class used across the application.
type Code string

const (
	CodeUnknown         Code = "unknown"
	CodeConfiguration   Code = "configuration_error"
	CodeTransport       Code = "transport_error"
	CodeVersionConflict Code = "version_conflict"
	CodeNotFound        Code = "not_found"
)

// versionConflictSignature is the message Confluence returns when the
// submitted version number does not follow the current one.
const versionConflictSignature = "version must be incremented"

// ConfigError reports connection settings that are missing.
type ConfigError struct {
	Service string
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s is not configured: missing %s", e.Service, strings.Join(e.Missing, ", "))
}

// TransportError is a non-2xx response. Body is the raw response text.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsVersionConflict reports whether err is a transport error carrying the
// optimistic-concurrency rejection. This is the only place the signature
// is matched.
func IsVersionConflict(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return strings.Contains(strings.ToLower(te.Body), versionConflictSignature)
}

// IsNotFound reports whether err is a 404 transport error.
func IsNotFound(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == http.StatusNotFound
}

// IsConfigError reports whether err stems from missing connection settings.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// CodeOf walks the error chain and classifies it.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case IsConfigError(err):
		return CodeConfiguration
	case IsVersionConflict(err):
		return CodeVersionConflict
	case IsNotFound(err):
		return CodeNotFound
	}
	var te *TransportError
	if errors.As(err, &te) {
		return CodeTransport
	}
	return CodeUnknown
}
