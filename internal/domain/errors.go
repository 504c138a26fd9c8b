package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals bad caller input. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration signals an invalid or incomplete configuration.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrCacheCorruption signals a cache entry that cannot be decoded.
	// Callers of the cache never see it: the entry is treated as a miss.
	ErrCacheCorruption = errors.New("cache entry corrupted")

	// ErrProviderRateLimited signals the embedding provider throttled the request.
	ErrProviderRateLimited = errors.New("embedding provider rate limited")
	// ErrProviderAuth signals rejected provider credentials.
	ErrProviderAuth = errors.New("embedding provider authentication failed")
	// ErrProviderTransient signals a network or 5xx failure worth one retry.
	ErrProviderTransient = errors.New("embedding provider unavailable")
	// ErrProviderMalformed signals a provider response that does not match the request.
	ErrProviderMalformed = errors.New("embedding provider returned malformed response")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")

	// ErrCollectionNotFound signals an unknown vector-store collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrBackendUnavailable signals a vector-store transport failure.
	ErrBackendUnavailable = errors.New("vector store unavailable")
	// ErrRetrieval signals that the query could not be embedded.
	ErrRetrieval = errors.New("retrieval failed")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s=%v: %s", ErrValidation, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error for a single field.
func NewValidationError(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// OutOfRange creates a validation error for a numeric value outside [lo, hi].
func OutOfRange(field string, value any, lo, hi any) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf("must be between %v and %v", lo, hi),
	}
}

// ProviderErrorKind classifies embedding provider failures.
type ProviderErrorKind string

// Provider failure kinds.
const (
	ProviderRateLimited ProviderErrorKind = "rate_limited"
	ProviderAuth        ProviderErrorKind = "auth"
	ProviderTransient   ProviderErrorKind = "transient"
	ProviderRejected    ProviderErrorKind = "rejected"
)

// ProviderError is a classified failure returned by an embedding provider.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding provider error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding provider error (%s): %s", e.Kind, e.Message)
}

// Unwrap maps the kind onto the matching sentinel so callers can use errors.Is.
func (e *ProviderError) Unwrap() error {
	switch e.Kind {
	case ProviderRateLimited:
		return ErrProviderRateLimited
	case ProviderAuth:
		return ErrProviderAuth
	case ProviderTransient:
		return ErrProviderTransient
	default:
		return nil
	}
}

// IsRetryable reports whether err deserves the single batch-level retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderRateLimited) || errors.Is(err, ErrProviderTransient)
}

// IsRateLimited reports whether err is a provider throttling signal.
func IsRateLimited(err error) bool { return errors.Is(err, ErrProviderRateLimited) }

// IsAuth reports whether err is a fatal provider authentication failure.
func IsAuth(err error) bool { return errors.Is(err, ErrProviderAuth) }

// CacheOp names the cache operation that failed.
type CacheOp string

// Cache operations.
const (
	CacheOpRead         CacheOp = "read_failed"
	CacheOpWrite        CacheOp = "write_failed"
	CacheOpCorrupted    CacheOp = "corrupted_data"
	CacheOpSizeExceeded CacheOp = "size_limit_exceeded"
	CacheOpEvictFailed  CacheOp = "evict_failed"
)

// CacheError wraps a cache failure with the operation and key involved.
type CacheError struct {
	Op  CacheOp
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s [%s]: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// CollectionNotFoundError names the unknown collection.
type CollectionNotFoundError struct {
	Name string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrCollectionNotFound, e.Name)
}

func (e *CollectionNotFoundError) Unwrap() error { return ErrCollectionNotFound }

// BackendUnavailableError wraps a vector-store transport failure.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackendUnavailable, e.Op, e.Err)
}

// Is matches ErrBackendUnavailable in addition to the wrapped cause.
func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// RetrievalError wraps the failure to embed a search query.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRetrieval, e.Err)
}

// Is matches ErrRetrieval in addition to the wrapped cause.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

func (e *RetrievalError) Unwrap() error { return e.Err }

// AllFailedError is returned when every item of a batch call failed.
type AllFailedError struct {
	Count int
	First error
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all %d items failed: %v", e.Count, e.First)
}

func (e *AllFailedError) Unwrap() error { return e.First }
