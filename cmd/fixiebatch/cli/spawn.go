package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fixiebatch/internal/control"
)

var (
	spawnSimulationFile string
	spawnUser           string
	spawnToken          string
	spawnName           string
	spawnProject        string
	spawnPermissions    string
	spawnPost           []string
	spawnNotify         []string
	spawnInteractive    bool
)

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Spawn a new simulation job",
	RunE:  runSpawn,
}

func init() {
	spawnCmd.Flags().StringVar(&spawnSimulationFile, "simulation", "", "path to a JSON file describing the simulation (required; must decode to an object)")
	spawnCmd.Flags().StringVar(&spawnUser, "user", "", "user spawning the job")
	spawnCmd.Flags().StringVar(&spawnToken, "token", "", "credential token for --user")
	spawnCmd.Flags().StringVar(&spawnName, "name", "", "optional job alias name")
	spawnCmd.Flags().StringVar(&spawnProject, "project", "", "optional project name")
	spawnCmd.Flags().StringVar(&spawnPermissions, "permissions", "public", "job permissions (only \"public\" is supported)")
	spawnCmd.Flags().StringSliceVar(&spawnPost, "post", nil, "post-processing activities (not yet supported, must be empty)")
	spawnCmd.Flags().StringSliceVar(&spawnNotify, "notify", nil, "notification targets (not yet supported, must be empty)")
	spawnCmd.Flags().BoolVar(&spawnInteractive, "interactive", false, "interactive spawning (not yet supported)")
	_ = spawnCmd.MarkFlagRequired("simulation")
	_ = spawnCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(spawnCmd)
}

func runSpawn(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(spawnSimulationFile)
	if err != nil {
		return fmt.Errorf("read simulation file: %w", err)
	}
	var simulation any
	if err := json.Unmarshal(raw, &simulation); err != nil {
		return fmt.Errorf("decode simulation file: %w", err)
	}

	result := control.Spawn(deps, control.SpawnRequest{
		Simulation:  simulation,
		User:        spawnUser,
		Token:       spawnToken,
		Name:        spawnName,
		Project:     spawnProject,
		Permissions: spawnPermissions,
		Post:        spawnPost,
		Notify:      spawnNotify,
		Interactive: spawnInteractive,
		ReturnPID:   true,
	})

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if result.OK {
		fmt.Printf("%s (jobid=%d, pid=%d)\n", result.Message, result.JobID, result.PID)
	} else {
		fmt.Fprintf(os.Stderr, "%s\n", result.Message)
	}

	exitCodeForResult(result.OK)
	return nil
}
