package setup

import (
	"fmt"

	"gpuwatch/internal/agent"
)

// Plan returns the configuration stages still needed to take an agent at
// current to target, in apply order. Each stage is identified by the status
// it establishes. Stages at or below current are skipped — re-running after
// partial or full completion performs no redundant work.
func Plan(current, target agent.ConfigStatus) []agent.ConfigStatus {
	var stages []agent.ConfigStatus
	for st := agent.StatusBaseMetrics; st <= target; st++ {
		if st > current {
			stages = append(stages, st)
		}
	}
	return stages
}

// ParseTarget maps a CLI stage name to the status it establishes.
func ParseTarget(name string) (agent.ConfigStatus, error) {
	switch name {
	case "base":
		return agent.StatusBaseMetrics, nil
	case "smi":
		return agent.StatusSMIMetrics, nil
	case "dcgm":
		return agent.StatusDCGMMetrics, nil
	default:
		return agent.StatusNotConfigured, fmt.Errorf("unknown target stage %q (want base, smi or dcgm)", name)
	}
}
