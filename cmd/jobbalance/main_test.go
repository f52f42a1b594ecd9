package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanengo/jobbalance/log"
)

const testConfig = `
[balancer]
algorithm = "weightsPolling"

[[tasks]]
id = "a"
weight = 3

[[tasks]]
id = "b"

[[tasks]]
id = "c"
weight = 0

[logging]
level = "error"
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { log.SetLogger(nil) })
	path := filepath.Join(t.TempDir(), "jobbalance.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	var buf bytes.Buffer
	app := App()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"jobbalance", "--config", path}, args...))
	return buf.String(), err
}

// taskColumn returns the task id printed for every job.
func taskColumn(out string) []string {
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, "\t")
		ids = append(ids, fields[1])
	}
	return ids
}

func TestAlgorithmsCmd(t *testing.T) {
	out, err := run(t, "algorithms")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"polling", "weights", "random", "specify",
		"minimumConnection", "weightsPolling", "weightsRandom", "weightsMinimumConnection",
	}, strings.Fields(out))
}

func TestPickCmd(t *testing.T) {
	out, err := run(t, "pick", "--count", "8")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "a", "b", "a", "a", "a", "b"}, taskColumn(out))
}

func TestPickCmdHold(t *testing.T) {
	out, err := run(t, "pick", "--algorithm", "minimumConnection", "--hold", "--count", "6")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, taskColumn(out))
}

func TestPickCmdTarget(t *testing.T) {
	out, err := run(t, "pick", "--algorithm", "specify", "--target", "c", "--count", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "c"}, taskColumn(out))

	out, err = run(t, "pick", "--algorithm", "specify", "--target", "z", "--count", "2")
	assert.Error(t, err)
	assert.Contains(t, out, "UNKNOWN_TARGET")
}

func TestPickCmdUnknownAlgorithm(t *testing.T) {
	_, err := run(t, "pick", "--algorithm", "fastest")
	assert.Error(t, err)
}
