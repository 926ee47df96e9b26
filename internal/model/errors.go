package model

import "fmt"

// The four failure kinds the optimizer surfaces. Callers distinguish them
// with errors.As; the API maps each to an HTTP status and error code.

// DataError reports a malformed, empty, or insufficient input price series,
// after the validator's lenient repairs have been exhausted.
type DataError struct {
	Msg string
}

func NewDataError(format string, args ...any) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}

func (e *DataError) Error() string { return "data: " + e.Msg }

// ConfigurationError reports out-of-range parameters or an unknown
// (area, voltage) tariff lookup. Raised before any solving begins.
type ConfigurationError struct {
	Msg string
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Msg }

// SolverError reports a non-optimal MILP outcome for one window. Status
// carries the backend's reported status string.
type SolverError struct {
	Window int // zero-based window index
	Status string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver: window %d not optimal: %s", e.Window, e.Status)
}

// CancellationError reports a user-initiated cancellation observed at a
// window boundary. Distinct from SolverError so callers do not treat it as a
// failure needing investigation.
type CancellationError struct {
	Window int // index of the first window not processed
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before window %d", e.Window)
}
