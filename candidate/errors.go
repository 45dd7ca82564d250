package candidate

import (
	"fmt"
	"strings"
)

// BuildError reports a failed build of the candidate binary. Output is the
// build's combined output, verbatim.
type BuildError struct {
	Command []string
	Output  []byte
	Err     error
}

// Error includes the build output so compiler diagnostics reach the logs.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("building candidate (%s): %v", strings.Join(e.Command, " "), e.Err)
	if out := strings.TrimRight(string(e.Output), "\n"); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// Reason classifies an invocation failure.
type Reason int

const (
	// ReasonExitStatus: the process exited nonzero; its stdout is untrusted.
	ReasonExitStatus Reason = iota + 1
	// ReasonTimeout: the process outlived its deadline and was killed.
	ReasonTimeout
	// ReasonMalformedManifest: stdout is not a JSON object.
	ReasonMalformedManifest
	// ReasonInvalidManifest: stdout parsed but breaks the manifest contract.
	ReasonInvalidManifest
)

func (r Reason) String() string {
	switch r {
	case ReasonExitStatus:
		return "exit_status"
	case ReasonTimeout:
		return "timeout"
	case ReasonMalformedManifest:
		return "malformed_manifest"
	case ReasonInvalidManifest:
		return "invalid_manifest"
	}
	return "unknown"
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// InvocationError reports a candidate run that produced no usable manifest.
type InvocationError struct {
	Reason   Reason
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	if e.Reason == ReasonExitStatus {
		return fmt.Sprintf("invoking candidate: %s %d: %v", e.Reason, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("invoking candidate: %s: %v", e.Reason, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }
