package main

import (
	"fmt"
	"os"

	"gpuwatch/cmd/gpuwatch/ui"
	"gpuwatch/internal/logging"
	"gpuwatch/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

const defaultLogFile = "/tmp/gpuwatch.log"

func main() {
	var (
		debug      bool
		configPath string
		logFile    string
	)

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "gpuwatch",
		Short:         "Configure CloudWatch GPU telemetry on this instance",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.ConfigureWithFile(level, logFile)
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", configDefaultPath(), "Path to the gpuwatch config file")
	root.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile, "Also write logs to this file (empty disables)")

	root.AddCommand(setupCmd(&configPath))
	root.AddCommand(statusCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
