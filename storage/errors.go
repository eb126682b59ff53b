package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

type conflictError struct {
	err error
}

func (e *conflictError) Error() string {
	return fmt.Sprintf("board version token is stale: %v", e.err)
}

func (e *conflictError) Conflict()     {}
func (e *conflictError) Unwrap() error { return e.err }

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("board store unreachable: %v", e.err)
}

func (e *unavailableError) Unavailable()  {}
func (e *unavailableError) Unwrap() error { return e.err }

// classify maps transport and service errors onto the two signals the sync
// controller distinguishes. A stale precondition is a conflict; an entity that
// vanished under a conditional update is treated the same way. Anything that
// never produced a service response, or a server-side failure that survived
// the retry policy, means the store is unavailable.
func classify(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return &unavailableError{err: err}
	}
	switch respErr.StatusCode {
	case http.StatusPreconditionFailed, http.StatusConflict, http.StatusNotFound:
		return &conflictError{err: err}
	}
	if respErr.StatusCode >= http.StatusInternalServerError || respErr.StatusCode == http.StatusRequestTimeout || respErr.StatusCode == http.StatusTooManyRequests {
		return &unavailableError{err: err}
	}
	return err
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
