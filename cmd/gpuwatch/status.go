package main

import (
	"fmt"

	"gpuwatch/cmd/gpuwatch/ui"
	"gpuwatch/config"
	"gpuwatch/internal/agent"
	"gpuwatch/internal/exporter"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
)

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent configuration and exporter container status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctl := agent.NewController(cfg.Agent.BaseDir)
			st, err := ctl.Probe(ctx)
			if err != nil {
				return err
			}

			fmt.Println(ui.Label("Agent config", st.Config.String()))
			fmt.Println(ui.Label("Agent runtime", st.Runtime.String()))

			docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
			if err != nil {
				fmt.Println(ui.Label("Exporter container", ui.Muted("unknown (docker unavailable)")))
				return nil
			}
			defer docker.Close()

			exp := exporter.New(docker, cfg.Exporter.CountersFile, exporter.WithPort(cfg.Exporter.Port))
			running, err := exp.Running(ctx)
			switch {
			case err != nil:
				fmt.Println(ui.Label("Exporter container", ui.Muted("unknown (docker unavailable)")))
			case running:
				fmt.Println(ui.Label("Exporter container", "running"))
			default:
				fmt.Println(ui.Label("Exporter container", "not running"))
			}
			return nil
		},
	}
}
