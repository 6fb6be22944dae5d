package host_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yougov/vr-common/pkg/host"
)

const procYAML = `
app_name: node_example
app_repo_url: https://github.com/btubbs/vr_node_example.git
app_repo_type: git
buildpack_url: https://github.com/heroku/heroku-buildpack-nodejs.git
buildpack_version: master
config_name: local
version: v2
release_hash: f96054b7
host: somewhere.example.com
port: 5003
user: nobody
proc_name: web
env:
  NODE_ENV: production
settings:
  DEBUG: false
`

func TestParseProcData(t *testing.T) {
	t.Parallel()
	pd, err := host.ParseProcData([]byte(procYAML))
	require.NoError(t, err)
	assert.Equal(t, "node_example", pd.AppName)
	assert.Equal(t, "web", pd.ProcName)
	assert.Equal(t, 5003, pd.Port)
	assert.Equal(t, "production", pd.Env["NODE_ENV"])
	assert.Equal(t, false, pd.Settings["DEBUG"])
}

func TestParseProcDataLegacyProcKey(t *testing.T) {
	t.Parallel()
	// Earlier versions of proc.yaml used "proc" instead of "proc_name".
	pd, err := host.ParseProcData([]byte("app_name: foo\nproc: web\nport: 8000\n"))
	require.NoError(t, err)
	assert.Equal(t, "web", pd.ProcName)
}

func TestParseProcDataNeedsProcOrCmd(t *testing.T) {
	t.Parallel()
	_, err := host.ParseProcData([]byte("app_name: foo\nport: 8000\n"))
	assert.ErrorIs(t, err, host.ErrNoProcName)

	// cmd alone is fine.
	pd, err := host.ParseProcData([]byte("app_name: foo\ncmd: run.sh\n"))
	require.NoError(t, err)
	assert.Equal(t, "run.sh", pd.Cmd)
}

func TestProcDataYAMLRoundTrip(t *testing.T) {
	t.Parallel()
	pd, err := host.ParseProcData([]byte(procYAML))
	require.NoError(t, err)

	out, err := pd.AsYAML()
	require.NoError(t, err)

	again, err := host.ParseProcData(out)
	require.NoError(t, err)
	assert.Equal(t, pd, again)
}
