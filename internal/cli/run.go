package cli

import (
	"github.com/harun/triagebot/internal/daemon"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the triage relay in the foreground",
	Long: `Run the triage relay in the foreground until SIGINT or SIGTERM.
Configuration, the pattern file and every source channel are validated
before any event is handled; a failure exits with status 1.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}

	if err := d.Run(); err != nil {
		log.Error().Err(err).Msg("Triagebot exited with error")
		return err
	}

	return nil
}
