package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for upload failure classification. Wrap tags errors with
// one of these so the processor can decide between retrying, failing the
// item, or aborting the whole drain pass.
var (
	// ErrConfigurationMissing means no endpoint credentials are configured.
	// Fatal to the pass; items stay pending.
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrConnectivityUnavailable means no usable network connection exists.
	// Fatal to the pass; items stay pending.
	ErrConnectivityUnavailable = errors.New("connectivity unavailable")
	// ErrServerUnavailable means the health probe reported the endpoint down.
	// Fatal to the pass; items stay pending.
	ErrServerUnavailable = errors.New("server unavailable")
	// ErrPayloadMissing means the local media bytes no longer exist.
	// Fatal to the item; retrying cannot succeed.
	ErrPayloadMissing = errors.New("payload missing")
	// ErrServerRejected means the server returned a permanent rejection (403).
	// Fatal to the item regardless of remaining retry budget.
	ErrServerRejected = errors.New("server rejected")
	// ErrServerError means the server returned a transient failure. Retried.
	ErrServerError = errors.New("server error")
	// ErrTransportError means the submission failed at the network layer. Retried.
	ErrTransportError = errors.New("transport error")
	// ErrResponseUnparseable means a 2xx response carried an unreadable body. Retried.
	ErrResponseUnparseable = errors.New("response unparseable")
)

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrTransportError
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ItemFatal reports whether an error should fail the item immediately,
// bypassing the retry budget.
func ItemFatal(err error) bool {
	return errors.Is(err, ErrPayloadMissing) || errors.Is(err, ErrServerRejected)
}

// PassFatal reports whether an error should abort the whole drain pass,
// leaving every item untouched for a later trigger.
func PassFatal(err error) bool {
	return errors.Is(err, ErrConfigurationMissing) ||
		errors.Is(err, ErrConnectivityUnavailable) ||
		errors.Is(err, ErrServerUnavailable)
}

// Transient reports whether an error is eligible for retry.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	return !ItemFatal(err) && !PassFatal(err)
}

// Reason produces the short human-readable failure string persisted on
// history entries.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrPayloadMissing):
		return "payload missing"
	case errors.Is(err, ErrServerRejected):
		return "server rejected upload"
	case errors.Is(err, ErrResponseUnparseable):
		return "server response unparseable"
	case errors.Is(err, ErrServerError):
		return "server error"
	case errors.Is(err, ErrTransportError):
		return "network error"
	case err == nil:
		return ""
	default:
		return strings.TrimSpace(err.Error())
	}
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
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
