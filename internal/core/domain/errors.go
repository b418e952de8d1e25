package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrConnectivity is returned when the network provider cannot be reached
	// or is not the network the run was configured for.
	ErrConnectivity = errors.New("network connectivity failed")

	// ErrTransaction is returned when a creation transaction is rejected by the
	// node or its receipt reports a revert.
	ErrTransaction = errors.New("transaction failed")

	// ErrIO is returned when the manifest cannot be created or written.
	ErrIO = errors.New("manifest i/o failed")

	// ErrInvalidPlan is returned when a deployment plan violates ordering rules.
	ErrInvalidPlan = errors.New("invalid deployment plan")

	// ErrInvalidManifest is returned when a manifest is missing required fields.
	ErrInvalidManifest = errors.New("invalid deployment manifest")
)

// DeploymentError wraps a failure of a deployment run with the step that failed.
type DeploymentError struct {
	Op       string // Operation that failed (e.g., "ResolveIdentity", "DeployContract")
	Contract string // Contract name if the failure belongs to a step
	Message  string
	Err      error
}

func (e *DeploymentError) Error() string {
	if e.Contract != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Contract, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// NewDeploymentError creates a new DeploymentError.
func NewDeploymentError(op, contract, message string, err error) *DeploymentError {
	return &DeploymentError{
		Op:       op,
		Contract: contract,
		Message:  message,
		Err:      err,
	}
}
