// Package v1 provides the HTTP-layer error types and the mapping from the
// core error taxonomy (errs.Code) to status codes, shared by every v1
// handler.
package v1

import (
	"errors"
	"net/http"

	"github.com/clawrrency/clawrrency/foundation/blockchain/errs"
)

// ErrorResponse is the form returned to a client when a request fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequestError is used to pass an error during the request through the
// application with web specific context. This is handled by the Errors
// middleware, which knows how to deal with this type of error.
type RequestError struct {
	Err    error
	Status int
}

// NewRequestError wraps a provided error with an HTTP status code. This
// should be used when handlers encounter expected errors.
func NewRequestError(err error, status int) error {
	return &RequestError{err, status}
}

// Error implements the error interface.
func (re *RequestError) Error() string {
	return re.Err.Error()
}

// statusByCode maps the closed error taxonomy to the status table defined
// for the HTTP surface.
var statusByCode = map[errs.Code]int{
	errs.DuplicateTransaction: http.StatusConflict,
	errs.InvalidSignature:     http.StatusUnauthorized,
	errs.InsufficientBalance:  http.StatusBadRequest,
	errs.InvalidNonce:         http.StatusBadRequest,
	errs.InvalidAmount:        http.StatusBadRequest,
	errs.InvalidSkill:         http.StatusBadRequest,
	errs.UnknownSender:        http.StatusNotFound,
	errs.UnknownRecipient:     http.StatusNotFound,
	errs.StakeRequired:        http.StatusForbidden,
	errs.ReputationTooLow:     http.StatusForbidden,
	errs.ConsensusFailure:     http.StatusServiceUnavailable,
}

// FromCoreError converts an error returned by the ledger, identity,
// marketplace, or consensus packages into a RequestError carrying the
// status table's code, or 500 if err isn't one of the core taxonomy's
// *errs.Error values.
func FromCoreError(err error) error {
	var e *errs.Error
	if !errors.As(err, &e) {
		return NewRequestError(err, http.StatusInternalServerError)
	}

	status, ok := statusByCode[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	return NewRequestError(e, status)
}
