// Command apt-mirror runs one mirroring pass against a mirror.list
// configuration file, per SPEC_FULL.md §6.
package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radawson/apt-mirror/config"
	"github.com/radawson/apt-mirror/orchestrate"
	"github.com/radawson/apt-mirror/signature"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verbose   bool
		dryRun    bool
		gpgvPath  string
	)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	exitCode := orchestrate.ExitSuccess

	cmd := &cobra.Command{
		Use:           "apt-mirror [config-path]",
		Short:         "Mirror APT repositories to local storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			path := "/etc/apt/mirror.list"
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(path)
			if err != nil {
				log.WithError(err).Error("loading configuration")
				exitCode = orchestrate.ExitConfigError
				return nil
			}
			cfg.DryRun = cfg.DryRun || dryRun

			var verifier signature.Verifier = &signature.GPGV{Path: gpgvPath}
			r := orchestrate.NewRun(cfg, log, orchestrate.DefaultListener(log), verifier)
			exitCode = r.Execute(context.Background())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the run without fetching archives or deleting files")
	cmd.Flags().StringVar(&gpgvPath, "gpgv-path", "", "path to the gpgv binary (defaults to $PATH)")

	if err := cmd.Execute(); err != nil {
		log.WithError(err).Error("apt-mirror")
		return orchestrate.ExitConfigError
	}
	return exitCode
}
