// Package errors provides the gateway's unified error taxonomy: a
// ServiceError carrying a stable code, an HTTP status and an optional detail
// bag, with one constructor per taxonomy entry in spec.md §7.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeDecryptFailed Code = "DECRYPT_FAILED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeVendorUpstream Code = "VENDOR_UPSTREAM"
	CodeNotSupported  Code = "NOT_SUPPORTED"
	CodeNotConfigured Code = "NOT_CONFIGURED"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL"
)

// ServiceError is the structured error type every layer of the gateway
// returns; the HTTP surface renders it through the canonical error envelope.
type ServiceError struct {
	Code       Code                   `json:"error"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetail attaches a diagnostic key/value pair and returns the receiver
// for chaining.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, status int, message string) *ServiceError {
	return &ServiceError{Code: code, HTTPStatus: status, Message: message}
}

func Wrap(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, HTTPStatus: status, Message: message, Err: err}
}

// Validation builds a 400 bad-body/query/param error with structured
// details.
func Validation(message string, details map[string]interface{}) *ServiceError {
	e := New(CodeValidation, http.StatusBadRequest, message)
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// NotFound builds a 404 missing-entity error.
func NotFound(resource, id string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).WithDetail("id", id)
}

// Conflict builds a 412 ETag-mismatch error.
func Conflict(message string) *ServiceError {
	return New(CodeConflict, http.StatusPreconditionFailed, message)
}

// Unauthorized builds a 401 missing/invalid-credential error.
func Unauthorized(message string) *ServiceError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

// DecryptFailed builds a 500 ciphertext-integrity error. It is distinct from
// Unauthorized because it indicates operator error (bad/rotated encryption
// key), not a bad caller credential.
func DecryptFailed(err error) *ServiceError {
	return Wrap(CodeDecryptFailed, http.StatusInternalServerError, "failed to decrypt stored credentials", err)
}

// Forbidden builds a 403 wrong-tenant / consent-not-accepted error.
func Forbidden(message string) *ServiceError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

// VendorUpstream builds a 502 error carrying the vendor's status code and
// response body, used once retries are exhausted or the vendor returned an
// opaque 4xx.
func VendorUpstream(vendorStatus int, body string) *ServiceError {
	truncated := body
	if len(truncated) > 2048 {
		truncated = truncated[:2048]
	}
	return New(CodeVendorUpstream, http.StatusBadGateway, "vendor request failed").
		WithDetail("statusCode", vendorStatus).
		WithDetail("details", truncated)
}

// NotSupported builds a 400 resource-not-mapped-for-vendor error.
func NotSupported(vendor, resourceType string) *ServiceError {
	return New(CodeNotSupported, http.StatusBadRequest, fmt.Sprintf("%s is not supported for %s", resourceType, vendor)).
		WithDetail("vendor", vendor).WithDetail("resourceType", resourceType)
}

// NotConfigured builds a 501 missing-vendor-config error.
func NotConfigured(vendor string) *ServiceError {
	return New(CodeNotConfigured, http.StatusNotImplemented, fmt.Sprintf("%s is not configured", vendor)).
		WithDetail("vendor", vendor)
}

// RateLimited builds a 429 ingress-rate-limit error.
func RateLimited() *ServiceError {
	return New(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
}

// Internal builds a 500 catch-all error.
func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, http.StatusInternalServerError, message, err)
}

// As extracts a *ServiceError from an error chain, if present.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := errors.As(err, &se)
	return se, ok
}

// HTTPStatus resolves the HTTP status for any error: a ServiceError's own
// status, or 500 for anything unrecognized.
func HTTPStatus(err error) int {
	if se, ok := As(err); ok {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
