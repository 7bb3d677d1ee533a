package sandbox

import "context"

// NoOutput is reported for a successful run that produced no text at all, so
// a success is never an empty string.
const NoOutput = "no output"

// Result is the outcome of running one code suggestion. Exactly one of Output
// and Error is populated.
type Result struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success wraps program output, substituting the NoOutput placeholder when empty.
func Success(output string) Result {
	if output == "" {
		output = NoOutput
	}
	return Result{Output: output}
}

// Failure wraps an execution error description.
func Failure(err string) Result {
	if err == "" {
		err = "unknown execution error"
	}
	return Result{Error: err}
}

// Failed reports whether the result is the failure variant.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Executor runs untrusted generated code in an ephemeral isolated environment.
// Runtime faults, timeouts and provisioning failures are reported through the
// Result; a non-nil error means the executor could not reach its backend at
// all. Neither path is retried here; retries belong to the replication loop.
type Executor interface {
	Execute(ctx context.Context, code, language string) (Result, error)
}
