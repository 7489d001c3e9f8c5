package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/triagebot/internal/daemon"
	"github.com/harun/triagebot/internal/logger"
	"github.com/spf13/cobra"
)

var checkProbe bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and patterns",
	Long: `Validate the configuration and the pattern file and print a summary.
With --probe, also connect to the platform and check every source channel.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkProbe, "probe", false, "probe every source channel through the platform API")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	plan, err := daemon.Prepare(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transport: %s\n", cfg.Transport)
	fmt.Fprintf(out, "Target channel: %s\n", plan.Authorizer.Target())
	fmt.Fprintf(out, "Source channels: %s\n", strings.Join(plan.Authorizer.Sources(), ", "))
	fmt.Fprintf(out, "Patterns (%d) from %s:\n", plan.Patterns.Len(), cfg.PatternsFile)
	for _, p := range plan.Patterns.Patterns() {
		fmt.Fprintf(out, "  %s\n", p)
	}
	fmt.Fprintf(out, "Reaction: %s\n", cfg.Reaction())

	if !checkProbe {
		return nil
	}

	d, err := daemon.New(cfg, logger.Nop())
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.ValidateSources(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(out, "All source channels reachable")

	return nil
}
