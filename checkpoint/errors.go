package checkpoint

import "errors"

var (
	// ErrChainQuery is returned when a chain read fails or returns unusable data
	ErrChainQuery = errors.New("chain query failed")
	// ErrSubmission is returned when pushing a checkpoint or waiting for its commitment fails
	ErrSubmission = errors.New("checkpoint submission failed")
	// ErrConfigStream is returned when the configuration feed closes under the subsystem
	ErrConfigStream = errors.New("configuration stream closed")
	// ErrProofConstruction is returned when a checkpoint proof cannot be assembled
	ErrProofConstruction = errors.New("proof construction failed")
	// ErrUnsupportedNetworks is returned for parent and child network types no manager supports
	ErrUnsupportedNetworks = errors.New("unsupported network type combination")
)
