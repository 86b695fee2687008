package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fixiebatch/internal/control"
)

var (
	cancelUser    string
	cancelToken   string
	cancelProject string
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <jobid-or-name>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	cancelCmd.Flags().StringVar(&cancelUser, "user", "", "user requesting cancellation")
	cancelCmd.Flags().StringVar(&cancelToken, "token", "", "credential token for --user")
	cancelCmd.Flags().StringVar(&cancelProject, "project", "", "project scope for alias resolution")
	_ = cancelCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	var job any = args[0]
	if n, err := strconv.Atoi(args[0]); err == nil {
		job = n
	}

	result := control.Cancel(deps, control.CancelRequest{
		Job:     job,
		User:    cancelUser,
		Token:   cancelToken,
		Project: cancelProject,
	})

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if result.OK {
		fmt.Printf("%s (jobid=%d)\n", result.Message, result.JobID)
	} else {
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}

	exitCodeForResult(result.OK)
	return nil
}
