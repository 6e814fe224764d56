package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viewavocats/estimia/internal/antispam"
	"github.com/viewavocats/estimia/internal/ratelimit"
)

// Policy tells the caller how to react to a failed run.
type Policy string

const (
	// PolicyRecoverable: the user can retry, possibly with more detail.
	PolicyRecoverable Policy = "recoverable"
	// PolicyRejected: a policy refused the request; retrying early will fail.
	PolicyRejected Policy = "rejected"
	// PolicyTransient: safe to retry immediately.
	PolicyTransient Policy = "transient"
)

// Failure is implemented by every typed error a pipeline run returns.
type Failure interface {
	error
	Kind() string
	Reason() string
	Policy() Policy
}

// AsFailure extracts the typed failure from err.
func AsFailure(err error) (Failure, bool) {
	var f Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Classification failure reasons.
const (
	ReasonMalformedResponse = "malformed_response"
	ReasonOracleFailure     = "oracle_failure"
)

// Catalog lookup failure reasons.
const (
	ReasonUnknownDomain  = "unknown_domain"
	ReasonUnknownService = "unknown_service"
	ReasonMissingPrice   = "missing_price"
)

// Invalid request reasons.
const (
	ReasonEmptyDescription = "empty_description"
	ReasonExampleText      = "example_text"
	ReasonEmptyMessage     = "empty_message"
	ReasonInvalidEmail     = "invalid_email"
)

// RateLimitError is returned when the RateGate rejects a request.
type RateLimitError struct {
	Scope      ratelimit.Scope
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%s), retry after %s", e.Scope, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Kind() string   { return "rate_limit_exceeded" }
func (e *RateLimitError) Reason() string { return string(e.Scope) }
func (e *RateLimitError) Policy() Policy { return PolicyRejected }

// TimeoutError is returned when an oracle stage exceeded its deadline.
type TimeoutError struct {
	Stage    string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Stage, e.Deadline)
}

func (e *TimeoutError) Kind() string   { return "timed_out" }
func (e *TimeoutError) Reason() string { return e.Stage }
func (e *TimeoutError) Policy() Policy { return PolicyTransient }

// ClassificationError is returned when the oracle could not be called or its
// answer could not be used.
type ClassificationError struct {
	Cause string
	Err   error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %s: %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("classification failed: %s", e.Cause)
}

func (e *ClassificationError) Unwrap() error  { return e.Err }
func (e *ClassificationError) Kind() string   { return "classification_error" }
func (e *ClassificationError) Reason() string { return e.Cause }
func (e *ClassificationError) Policy() Policy { return PolicyRecoverable }

// CatalogLookupError is returned by Price when the pair cannot be priced.
// Available lists the domain's services for unknown_service.
type CatalogLookupError struct {
	Cause     string
	DomainID  string
	ServiceID string
	Available []string
}

func (e *CatalogLookupError) Error() string {
	switch e.Cause {
	case ReasonUnknownDomain:
		return fmt.Sprintf("no domain found for %q", e.DomainID)
	case ReasonUnknownService:
		return fmt.Sprintf("service %q not found in domain %q (available: %s)",
			e.ServiceID, e.DomainID, strings.Join(e.Available, ", "))
	default:
		return fmt.Sprintf("no base price for service %q in domain %q", e.ServiceID, e.DomainID)
	}
}

func (e *CatalogLookupError) Kind() string   { return "catalog_lookup_error" }
func (e *CatalogLookupError) Reason() string { return e.Cause }
func (e *CatalogLookupError) Policy() Policy { return PolicyRecoverable }

// SpamError is returned when a contact submission is rejected.
type SpamError struct {
	Cause      antispam.Reason
	RetryAfter time.Duration
}

func (e *SpamError) Error() string {
	return fmt.Sprintf("contact submission rejected: %s", e.Cause)
}

func (e *SpamError) Kind() string   { return "spam_rejected" }
func (e *SpamError) Reason() string { return string(e.Cause) }
func (e *SpamError) Policy() Policy { return PolicyRejected }

// InvalidRequestError is returned for submissions rejected before admission.
// No quota is consumed.
type InvalidRequestError struct {
	Cause string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Cause)
}

func (e *InvalidRequestError) Kind() string   { return "invalid_request" }
func (e *InvalidRequestError) Reason() string { return e.Cause }
func (e *InvalidRequestError) Policy() Policy { return PolicyRecoverable }
