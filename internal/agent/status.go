package agent

// ConfigStatus describes how much monitoring configuration has been applied
// to the agent. The values are strictly ordered: a later status implies every
// earlier stage's configuration is present.
type ConfigStatus uint8

const (
	StatusNotConfigured ConfigStatus = iota
	StatusBaseMetrics
	StatusSMIMetrics
	StatusDCGMMetrics
)

func (s ConfigStatus) String() string {
	switch s {
	case StatusNotConfigured:
		return "not-configured"
	case StatusBaseMetrics:
		return "base-metrics"
	case StatusSMIMetrics:
		return "nvidia-smi-metrics"
	case StatusDCGMMetrics:
		return "nvidia-dcgm-metrics"
	default:
		return "unknown"
	}
}

// RuntimeStatus describes whether the agent process is currently active.
// Independent of ConfigStatus.
type RuntimeStatus uint8

const (
	RuntimeStopped RuntimeStatus = iota
	RuntimeRunning
)

func (s RuntimeStatus) String() string {
	switch s {
	case RuntimeStopped:
		return "stopped"
	case RuntimeRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Status is the full probed agent state.
type Status struct {
	Config  ConfigStatus
	Runtime RuntimeStatus
}
