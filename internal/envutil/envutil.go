// Package envutil provides utilities for working with process environment
// variables, specifically the environment handed to the simulator
// subprocess the runner invokes.
package envutil

import (
	"os"
	"strings"
)

// FilteredEnv returns the current environment with every FIXIE_-prefixed
// variable removed. Those variables are this service's own control-plane
// configuration (directory paths, concurrency bound); the simulator is an
// opaque external binary that has no use for them and should
// not be able to discover or depend on this service's internal layout. The
// comparison is case-sensitive; only uppercase "FIXIE_" is stripped.
func FilteredEnv() []string {
	result := make([]string, 0, len(os.Environ()))
	for _, entry := range os.Environ() {
		key, _, _ := strings.Cut(entry, "=")
		if strings.HasPrefix(key, "FIXIE_") {
			continue
		}
		result = append(result, entry)
	}
	return result
}
