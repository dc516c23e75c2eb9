package exporter

import "fmt"

// InputReadError means the boundaries could not be loaded. No provider
// call has been made.
type InputReadError struct {
	Source string
	Err    error
}

func (e *InputReadError) Error() string {
	return fmt.Sprintf("failed to read boundaries from %s: %v", e.Source, e.Err)
}

func (e *InputReadError) Unwrap() error {
	return e.Err
}

// ProviderError means the provider call for Batch (0-based) failed and the
// run was aborted. Nothing was written.
type ProviderError struct {
	Provider   string
	Batch      int
	NumBatches int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failed on batch %d/%d: %v", e.Provider, e.Batch+1, e.NumBatches, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type OutputWriteError struct {
	Writer string
	Err    error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("failed to write output (%s): %v", e.Writer, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}
