package main

import (
	"io"

	"github.com/spf13/cobra"

	"drugsecure/internal/config"
	"drugsecure/internal/logging"
)

type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
	logger     *logging.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "drugsecure",
		Short:         "Herbal drug sample quality classification",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(a), newClassifyCmd(a), newBenchmarksCmd(a))
	return root
}
