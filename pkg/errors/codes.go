// Package errors provides centralized error code definitions for the inference server.
// All error codes are mapped to HTTP status codes so handlers never hand-roll one.
package errors

import "net/http"

// ErrorCode represents a typed error code used throughout the server.
type ErrorCode int

// ─────────────────────────────────────────────────────────────────────────────
// General / cross-cutting error codes  (1xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeOK indicates no error.
	CodeOK ErrorCode = 0

	// CodeUnknown is a catch-all for errors that have not been categorised.
	CodeUnknown ErrorCode = 10000

	// CodeInvalidParam is returned when one or more request parameters fail
	// validation (missing required fields, type mismatch, out-of-range values, etc.).
	CodeInvalidParam ErrorCode = 10001

	// CodeUnauthorized is returned when a request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = 10002

	// CodeForbidden is returned when authenticated credentials do not grant access
	// to the requested resource or action.
	CodeForbidden ErrorCode = 10003

	// CodeNotFound is returned when the requested resource does not exist.
	CodeNotFound ErrorCode = 10004

	// CodeConflict is returned when an operation violates a uniqueness or state
	// constraint.
	CodeConflict ErrorCode = 10005

	// CodeRateLimit is returned when the caller has exceeded the allowed request rate.
	CodeRateLimit ErrorCode = 10006

	// CodeInternal is returned for unexpected server-side errors that are not
	// attributable to the caller.
	CodeInternal ErrorCode = 10007

	// CodeNotImplemented is returned when a requested feature or endpoint is
	// not yet implemented.
	CodeNotImplemented ErrorCode = 10008
)

// ─────────────────────────────────────────────────────────────────────────────
// Serving layer error codes (6xxxx) — the registry/scheduler/breaker/jobmanager
// failure modes named in the external-interface contract.
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeArtifactMissing is returned when the registry cannot locate the
	// requested model version's artifact on disk.
	CodeArtifactMissing ErrorCode = 60001

	// CodeCannotUnloadDefault is returned when an unload is attempted against
	// the currently-default model version.
	CodeCannotUnloadDefault ErrorCode = 60002

	// CodeQueueFull is returned when the batch scheduler's queue is saturated.
	CodeQueueFull ErrorCode = 60003

	// CodeBreakerOpen is returned when a circuit breaker refuses entry because
	// it is protecting a failing downstream.
	CodeBreakerOpen ErrorCode = 60004

	// CodeSchedulerStopped is returned when a submission is observed during
	// scheduler shutdown.
	CodeSchedulerStopped ErrorCode = 60005

	// CodeJobNotFound is returned when a job id has no record in the job store.
	CodeJobNotFound ErrorCode = 60006

	// CodeInferenceTimeout is returned when a model inference call exceeds its
	// caller-supplied deadline.
	CodeInferenceTimeout ErrorCode = 60007
)

// ─────────────────────────────────────────────────────────────────────────────
// String — human-readable name of the error code
// ─────────────────────────────────────────────────────────────────────────────

// String returns the human-readable name associated with an ErrorCode.
// It is safe to call on any value, including unknown codes.
func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeUnknown:
		return "UNKNOWN"
	case CodeInvalidParam:
		return "INVALID_PARAM"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeConflict:
		return "CONFLICT"
	case CodeRateLimit:
		return "RATE_LIMIT"
	case CodeInternal:
		return "INTERNAL_ERROR"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"

	case CodeArtifactMissing:
		return "ARTIFACT_MISSING"
	case CodeCannotUnloadDefault:
		return "CANNOT_UNLOAD_DEFAULT"
	case CodeQueueFull:
		return "QUEUE_FULL"
	case CodeBreakerOpen:
		return "BREAKER_OPEN"
	case CodeSchedulerStopped:
		return "SCHEDULER_STOPPED"
	case CodeJobNotFound:
		return "JOB_NOT_FOUND"
	case CodeInferenceTimeout:
		return "INFERENCE_TIMEOUT"

	default:
		return "UNKNOWN_CODE"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTPStatus — mapping from error codes to HTTP status codes
// ─────────────────────────────────────────────────────────────────────────────

// HTTPStatus returns the most appropriate HTTP status code for the given
// ErrorCode. The mapping is used by the HTTP transport to translate errors
// into responses without any per-handler special-casing.
//
// Decision matrix:
//   - 200 OK              → CodeOK
//   - 400 Bad Request     → CodeInvalidParam, CodeCannotUnloadDefault
//   - 401 Unauthorized    → CodeUnauthorized
//   - 403 Forbidden       → CodeForbidden
//   - 404 Not Found       → CodeNotFound, CodeArtifactMissing, CodeJobNotFound
//   - 409 Conflict        → CodeConflict
//   - 429 Too Many Req.   → CodeRateLimit
//   - 503 Service Unavail → CodeQueueFull, CodeBreakerOpen, CodeSchedulerStopped
//   - 504 Gateway Timeout → CodeInferenceTimeout
//   - 501 Not Implemented → CodeNotImplemented
//   - 500 Internal Server → everything else
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK

	case CodeInvalidParam, CodeCannotUnloadDefault:
		return http.StatusBadRequest

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeNotFound, CodeArtifactMissing, CodeJobNotFound:
		return http.StatusNotFound

	case CodeConflict:
		return http.StatusConflict

	case CodeRateLimit:
		return http.StatusTooManyRequests

	case CodeQueueFull, CodeBreakerOpen, CodeSchedulerStopped:
		return http.StatusServiceUnavailable

	case CodeInferenceTimeout:
		return http.StatusGatewayTimeout

	case CodeNotImplemented:
		return http.StatusNotImplemented

	default:
		// CodeUnknown, CodeInternal, and all unrecognised codes.
		return http.StatusInternalServerError
	}
}
