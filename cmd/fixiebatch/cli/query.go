package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fixiebatch/internal/control"
)

var (
	queryStatuses []string
	queryUsers    []string
	queryJobs     []string
	queryProjects []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List jobs matching status/user/job/project filters",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryStatuses, "status", nil, "status filter (repeatable; \"all\" or omit for every status)")
	queryCmd.Flags().StringSliceVar(&queryUsers, "user", nil, "user filter (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryJobs, "job", nil, "job id or alias name filter (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryProjects, "project", nil, "project filter (repeatable)")
	rootCmd.AddCommand(queryCmd)
}

// toAnySlice converts a possibly-empty []string flag value into the `any`
// shape control.Query's filters expect: nil when the flag was not set (no
// constraint), otherwise a []any of strings so query.go's normalization
// helpers can treat CLI-supplied filters uniformly with any future non-CLI
// caller that already passes Go-native values.
func toAnySlice(values []string) any {
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// jobsFilterValue additionally lets each --job value that parses as an
// integer resolve as a job id rather than an alias name, matching how the
// cancel subcommand treats its positional job argument.
func jobsFilterValue(values []string) any {
	if len(values) == 0 {
		return nil
	}
	out := make([]any, len(values))
	for i, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			out[i] = n
		} else {
			out[i] = v
		}
	}
	return out
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	var statuses any = "all"
	if len(queryStatuses) > 0 {
		statuses = toAnySlice(queryStatuses)
	}

	result := control.Query(deps, control.QueryRequest{
		Statuses: statuses,
		Users:    toAnySlice(queryUsers),
		Jobs:     jobsFilterValue(queryJobs),
		Projects: toAnySlice(queryProjects),
	})

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if result.OK {
		for _, jv := range result.Data {
			fmt.Printf("%d\t%s\t%s\t%s\n", jv.JobID, jv.Status, jv.User, jv.Project)
		}
	} else {
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}

	exitCodeForResult(result.OK)
	return nil
}
