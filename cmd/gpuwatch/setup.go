package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gpuwatch/cmd/gpuwatch/ui"
	"gpuwatch/config"
	"gpuwatch/internal/agent"
	"gpuwatch/internal/exporter"
	"gpuwatch/internal/fragment"
	"gpuwatch/internal/imds"
	"gpuwatch/internal/preflight"
	"gpuwatch/internal/scrape"
	"gpuwatch/internal/setup"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
)

func configDefaultPath() string {
	return config.DefaultPath
}

const prerequisitesNote = `Please confirm the following prerequisites before proceeding:
 1. This instance has an IAM role with CloudWatch access attached.
 2. The CloudWatch agent package is installed (configuration is done here).
 3. NVIDIA GPUs are attached and the nvidia-smi and dcgmi tools work.
 4. The current user can sudo (agent control and config writes are elevated).
 5. If the instance has a name, set general.instance_name in the config file.`

func setupCmd(configPath *string) *cobra.Command {
	var (
		yes        bool
		targetName string
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the agent and the DCGM exporter on this VM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			target, err := setup.ParseTarget(targetName)
			if err != nil {
				return err
			}

			docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
			if err != nil {
				return fmt.Errorf("create docker client: %w", err)
			}
			defer docker.Close()

			meta := imds.NewClient()

			if err := preflight.New(agent.ExecRunner{}, docker, meta).Run(ctx); err != nil {
				return err
			}

			if cfg.General.InstanceName == "" {
				slog.Warn("No instance name in config; scraped metrics will carry an empty InstanceName label.",
					"config", *configPath)
			}

			ui.ConfigureInteraction(yes)
			if !yes {
				fmt.Fprintln(os.Stderr, ui.Muted(prerequisitesNote))
				ok, err := ui.Confirm("Configure GPU telemetry on this VM? Metrics will be sent to CloudWatch.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(ui.WarnMsg("Aborted, nothing changed."))
					return nil
				}
			}

			if err := fragment.EnsureCounters(cfg.Exporter.CountersFile); err != nil {
				return err
			}

			workDir, err := os.MkdirTemp("", "gpuwatch-fragments-")
			if err != nil {
				return fmt.Errorf("create fragment work dir: %w", err)
			}
			defer os.RemoveAll(workDir)

			ctl := agent.NewController(cfg.Agent.BaseDir)
			exp := exporter.New(docker, cfg.Exporter.CountersFile,
				exporter.WithImage(cfg.Exporter.Image),
				exporter.WithPort(cfg.Exporter.Port),
				exporter.WithInterval(time.Duration(cfg.General.PollingIntervalSecs)*time.Second),
			)

			writeScrape := func(ctx context.Context) error {
				id, err := meta.InstanceID(ctx)
				if err != nil {
					return err
				}
				dst := filepath.Join(cfg.Agent.BaseDir, "var", "prometheus.yaml")
				return scrape.Install(ctx, agent.ExecRunner{}, workDir, dst, scrape.Descriptor{
					Port:         cfg.Exporter.Port,
					IntervalSecs: cfg.General.PollingIntervalSecs,
					InstanceID:   id,
					InstanceName: cfg.General.InstanceName,
				})
			}

			orch := setup.New(ctl, exp, fragment.NewLibrary(workDir), writeScrape, setup.WithTarget(target))

			res, err := orch.Run(ctx)
			if err != nil {
				return err
			}

			if res.AlreadyConfigured {
				fmt.Println(ui.SuccessMsg("Agent already configured (%s) and running, no changes required.", res.After.Config))
				return nil
			}
			fmt.Println(ui.SuccessMsg("GPU telemetry configured: %s, agent %s.",
				ui.Bold(res.After.Config.String()), res.After.Runtime))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&targetName, "target", "dcgm", "Deepest stage to configure (base, smi or dcgm)")

	return cmd
}
