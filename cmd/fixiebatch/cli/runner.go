package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fixiebatch/internal/control"
	"fixiebatch/internal/logging"
	"fixiebatch/internal/runner"
)

var (
	runnerJobID       int
	runnerHandoffPath string
)

// runnerCmd is never invoked directly by an operator; control.DetachedLauncher
// execs it as a detached child for every spawned job. Hidden from --help.
var runnerCmd = &cobra.Command{
	Use:    "runner",
	Short:  "Supervise a single job (internal; invoked by spawn, not by users)",
	Hidden: true,
	RunE:   runRunner,
}

func init() {
	runnerCmd.Flags().IntVar(&runnerJobID, "jobid", -1, "job id this process supervises")
	runnerCmd.Flags().StringVar(&runnerHandoffPath, "handoff", "", "path to the handoff file written by spawn")
	_ = runnerCmd.MarkFlagRequired("jobid")
	_ = runnerCmd.MarkFlagRequired("handoff")
	rootCmd.AddCommand(runnerCmd)
}

func runRunner(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dirs, err := cfg.Dirs()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel).WithCorrelationId(fmt.Sprintf("job-%d", runnerJobID))

	handoff, err := control.ReadHandoff(runnerHandoffPath)
	if err != nil {
		return err
	}
	if handoff.JobID != runnerJobID {
		return fmt.Errorf("runner: handoff file describes job %d, not %d", handoff.JobID, runnerJobID)
	}
	defer control.RemoveHandoff(runnerHandoffPath)

	// A detached runner has no controlling terminal; it still honors
	// SIGTERM (delivered by cancel's syscall.Kill) so the ctx it hands
	// exec.CommandContext gets canceled, which terminates the simulator.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rn := runner.New(dirs, cfg, log)
	err = rn.Run(ctx, handoff)
	if runner.IsSelfCancel(err) {
		os.Exit(1)
	}
	return err
}
