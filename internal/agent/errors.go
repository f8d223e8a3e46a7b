package agent

import "fmt"

// ProbeError reports that the agent's status could not be determined. Fatal
// for a provisioning run: nothing is mutated after a failed probe.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe agent status: %v", e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// CommandError reports a failed agent CLI invocation (stop, start,
// append-config). Output carries the subcommand's combined output when
// available.
type CommandError struct {
	Op     string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("agent %s: %v: %s", e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("agent %s: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
