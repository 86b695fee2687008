package envutil_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"fixiebatch/internal/envutil"
)

func clearFixieVars(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		k, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(k, "FIXIE_") {
			t.Setenv(k, "")
			_ = os.Unsetenv(k)
		}
	}
}

func envContains(env []string, key string) bool {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func TestFilteredEnvStripsFixieVars(t *testing.T) {
	clearFixieVars(t)
	t.Setenv("FIXIE_NJOBS", "4")
	t.Setenv("FIXIE_QUEUED_JOBS_DIR", "/tmp/queued")
	t.Setenv("KEEP_ME", "yes")

	result := envutil.FilteredEnv()

	assert.False(t, envContains(result, "FIXIE_NJOBS"))
	assert.False(t, envContains(result, "FIXIE_QUEUED_JOBS_DIR"))
	assert.True(t, envContains(result, "KEEP_ME"))
}

func TestFilteredEnvCaseSensitive(t *testing.T) {
	clearFixieVars(t)
	t.Setenv("fixie_lowercase", "x")

	result := envutil.FilteredEnv()
	assert.True(t, envContains(result, "fixie_lowercase"))
}

func TestFilteredEnvReturnsNonNilSlice(t *testing.T) {
	clearFixieVars(t)
	result := envutil.FilteredEnv()
	assert.NotNil(t, result)
}
