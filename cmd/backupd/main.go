package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/spdsslg/backup-automation/internal/shell"
	"github.com/spdsslg/backup-automation/pkg/config"
	"github.com/spdsslg/backup-automation/pkg/logging"
	"github.com/spdsslg/backup-automation/pkg/registry"
)

func rootMain(_ *cobra.Command, _ []string) {
	cfg := config.Default()
	if rootConfiguration.configPath != "" {
		loaded, err := config.Load(rootConfiguration.configPath)
		if err != nil && !os.IsNotExist(err) {
			fatal(errors.Wrap(err, "unable to load configuration"))
		}
		if err == nil {
			cfg = loaded
		}
	}

	level := cfg.ResolveLevel(logging.RootLogger)
	if rootConfiguration.logLevel != "" {
		parsed, ok := logging.NameToLevel(rootConfiguration.logLevel)
		if !ok {
			fatal(errors.Errorf("invalid log level %q", rootConfiguration.logLevel))
		}
		level = parsed
	}
	logging.SetLevel(level)

	reg := registry.NewTuned(logging.RootLogger, cfg.Tuning())
	shell.New(reg, os.Stdin, os.Stdout).Run()
}

var rootCommand = &cobra.Command{
	Use:   "backupd",
	Short: "backupd interactively mirrors directories and restores them from their mirrors.",
	Run:   rootMain,
}

var rootConfiguration struct {
	logLevel   string
	configPath string
}

func init() {
	flags := rootCommand.Flags()
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "", "Set the logging level (disabled, error, warn, info, debug)")
	flags.StringVar(&rootConfiguration.configPath, "config", "", "Path to an optional YAML configuration file")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "fatal:", err)
	os.Exit(1)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
