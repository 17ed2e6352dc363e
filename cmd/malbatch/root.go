package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MasterOfBinary/malbatch/config"
	"github.com/MasterOfBinary/malbatch/dataset"
)

// globalOptions are the flags shared by every command. Set flags win over
// the environment and the configuration file.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	bodmasDir  string
}

// app carries what the commands share once the configuration is loaded.
type app struct {
	opts   globalOptions
	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer

	// executable locates the binary worker processes are started from.
	executable func() (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{executable: os.Executable}

	cmd := &cobra.Command{
		Use:          "malbatch",
		Short:        "Run transforms over malware sample datasets in batches",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "configuration file (default "+config.DefaultPath+" if present)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.opts.bodmasDir, "bodmas-dir", "", "BODMAS sample directory (overrides "+dataset.BodmasDirEnv+")")

	cmd.AddCommand(
		newScanCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newWorkerCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.opts.logFormat
	}
	if flags.Changed("bodmas-dir") {
		cfg.Datasets.BodmasDir = a.opts.bodmasDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Standard output may carry worker responses, so logs always go to
	// standard error.
	a.stderr = cmd.ErrOrStderr()
	logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format, a.stderr)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) datasets() *dataset.Registry {
	return dataset.Default(a.cfg.DatasetRoot(), a.logger)
}
