// Package driven defines the outbound ports the application core depends on:
// persistence, vendor connectors, and the message bus.
package driven

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by store and resolver implementations.
var (
	// ErrRepositoryNotFound indicates the referenced repository does not exist.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrPullRequestNotFound indicates the referenced pull request does not exist.
	ErrPullRequestNotFound = errors.New("pull request not found")

	// ErrConnectorNotFound indicates no connector is registered under the given key.
	ErrConnectorNotFound = errors.New("connector not found")
)

// VendorError wraps an upstream vendor failure (non-2xx response, missing
// credential). It aborts the in-flight fetch and surfaces to the dispatch
// router, which leaves the message unacked for transport redelivery.
type VendorError struct {
	Vendor     string
	Operation  string
	StatusCode int // Zero when the failure happened before an HTTP response.
	Err        error
}

func (e *VendorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Vendor, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Vendor, e.Operation, e.Err)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}
