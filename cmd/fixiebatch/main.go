// Command fixiebatch is the control-plane and runner-supervisor binary for
// the filesystem-backed batch simulation service.
package main

import (
	"os"

	"fixiebatch/cmd/fixiebatch/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
