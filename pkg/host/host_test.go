package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/datawire/dlib/dlog"
	"github.com/kolo/xmlrpc"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yougov/vr-common/pkg/host"
)

// fakeSupervisor stands in for the Supervisor XML-RPC interface.
type fakeSupervisor struct {
	procs map[string]host.ProcInfo
	err   error

	calls int
}

var _ host.Supervisor = (*fakeSupervisor)(nil)

func (f *fakeSupervisor) GetAllProcessInfo(context.Context) ([]host.ProcInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	infos := make([]host.ProcInfo, 0, len(f.procs))
	for _, info := range f.procs {
		infos = append(infos, info)
	}
	return infos, nil
}

func (f *fakeSupervisor) GetProcessInfo(_ context.Context, name string) (host.ProcInfo, error) {
	info, ok := f.procs[name]
	if !ok {
		return host.ProcInfo{}, xmlrpc.FaultError{Code: 10, String: "BAD_NAME: " + name}
	}
	return info, nil
}

func (f *fakeSupervisor) StartProcess(_ context.Context, name string) error {
	if info, ok := f.procs[name]; ok && info.StateName == "RUNNING" {
		return xmlrpc.FaultError{Code: 60, String: "ALREADY_STARTED"}
	}
	return f.err
}

func (f *fakeSupervisor) StopProcess(_ context.Context, name string) error {
	if info, ok := f.procs[name]; ok && info.StateName != "RUNNING" {
		return xmlrpc.FaultError{Code: 70, String: "NOT_RUNNING"}
	}
	return f.err
}

func (f *fakeSupervisor) GetVelociraptorInfo(context.Context, string) (*host.ProcData, error) {
	return nil, nil
}

// Process info fixtures shaped like what Supervisor actually returns.
func supervisorFixture() *fakeSupervisor {
	return &fakeSupervisor{procs: map[string]host.ProcInfo{
		"dummyproc": {
			Name:          "dummyproc",
			Group:         "dummyproc",
			Description:   "pid 5556, uptime 16:05:53",
			Start:         1355897986,
			Stop:          0,
			Now:           1355897986,
			State:         20,
			StateName:     "RUNNING",
			PID:           5556,
			Logfile:       "/var/log/supervisor/dummyproc-stdout.log",
			StdoutLogfile: "/var/log/supervisor/dummyproc-stdout.log",
			StderrLogfile: "/tmp/pub.log",
		},
		"node_example-v2-local-f96054b7-web-5003": {
			Name:          "node_example-v2-local-f96054b7-web-5003",
			Group:         "node_example-v2-local-f96054b7-web-5003",
			Description:   "Exited too quickly (process log may have details)",
			SpawnErr:      "Exited too quickly (process log may have details)",
			Start:         1355898065,
			Stop:          1355898065,
			Now:           1355955939,
			State:         200,
			StateName:     "FATAL",
			Logfile:       "/apps/procs/node_example-v2-local-f96054b7-web-5003/log",
			StdoutLogfile: "/apps/procs/node_example-v2-local-f96054b7-web-5003/log",
			StderrLogfile: "/var/log/supervisor/node_example-stderr.log",
		},
	}}
}

func newTestHost(t *testing.T, sup host.Supervisor, rdb redis.UniversalClient) *host.Host {
	t.Helper()
	h, err := host.New(host.Config{
		Name:        "somewhere.example.com",
		RPC:         sup,
		RedisClient: rdb,
	})
	require.NoError(t, err)
	return h
}

func TestGetProcs(t *testing.T) {
	ctx := dlog.NewTestContext(t, true)
	h := newTestHost(t, supervisorFixture(), nil)

	procs, err := h.GetProcs(ctx, false)
	require.NoError(t, err)
	require.Len(t, procs, 2)
}

func TestGetProc(t *testing.T) {
	ctx := dlog.NewTestContext(t, true)
	h := newTestHost(t, supervisorFixture(), nil)

	proc, err := h.GetProc(ctx, "node_example-v2-local-f96054b7-web-5003", false)
	require.NoError(t, err)
	assert.Equal(t, "node_example", proc.AppName)
	assert.Equal(t, "v2", proc.Version)
	assert.Equal(t, "local", proc.ConfigName)
	assert.Equal(t, "f96054b7", proc.Hash)
	assert.Equal(t, "web", proc.ProcName)
	assert.Equal(t, 5003, proc.Port)
	assert.Equal(t, "node_example-v2-web", proc.Shortname())
	assert.Equal(t, "somewhere.example.com:5003", proc.AsNode())
	assert.Equal(t, "somewhere.example.com-node_example-v2-local-f96054b7-web-5003", proc.ID())
}

func TestGetProcMissing(t *testing.T) {
	ctx := dlog.NewTestContext(t, true)
	h := newTestHost(t, supervisorFixture(), nil)

	_, err := h.GetProc(ctx, "nope", false)
	var procErr *host.ProcError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "nope", procErr.Name)
	assert.Contains(t, err.Error(), "has no proc named nope")
}

func TestGetProcsUnreachableSupervisor(t *testing.T) {
	ctx := dlog.NewTestContext(t, false)
	sup := &fakeSupervisor{err: assert.AnError}
	h := newTestHost(t, sup, nil)

	procs, err := h.GetProcs(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, procs)
	// Initial call plus one retry.
	assert.Equal(t, 2, sup.calls)
}

func TestProcCache(t *testing.T) {
	ctx := dlog.NewTestContext(t, true)
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	sup := supervisorFixture()
	h := newTestHost(t, sup, rdb)

	// First read populates the cache.
	procs, err := h.GetProcs(ctx, false)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	require.Equal(t, 1, sup.calls)
	assert.True(t, srv.Exists("host_procs:somewhere.example.com"))

	// Cached reads skip the supervisor.
	proc, err := h.GetProc(ctx, "dummyproc", true)
	require.NoError(t, err)
	assert.Equal(t, "dummyproc", proc.Name)
	assert.Equal(t, "RUNNING", proc.StateName)
	assert.Equal(t, 1, sup.calls)

	all, err := h.GetProcs(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, sup.calls)

	// An expired cache falls through to the supervisor again.
	srv.FastForward(601 * time.Second)
	_, err = h.GetProcs(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, sup.calls)
}

func TestProcTimes(t *testing.T) {
	ctx := dlog.NewTestContext(t, true)
	h := newTestHost(t, supervisorFixture(), nil)

	proc, err := h.GetProc(ctx, "dummyproc", false)
	require.NoError(t, err)
	require.NotNil(t, proc.StartTime())
	assert.Equal(t, int64(1355897986), proc.StartTime().Unix())
	// Supervisor puts a 0 where a timestamp doesn't apply.
	assert.Nil(t, proc.StopTime())
}

func TestStartStopFaults(t *testing.T) {
	ctx := dlog.NewTestContext(t, false)
	h := newTestHost(t, supervisorFixture(), nil)

	running, err := h.GetProc(ctx, "dummyproc", false)
	require.NoError(t, err)
	// Starting an already-running proc is not an error.
	assert.NoError(t, running.StartProc(ctx))

	dead, err := h.GetProc(ctx, "node_example-v2-local-f96054b7-web-5003", false)
	require.NoError(t, err)
	// Stopping a proc that isn't running is not an error either.
	assert.NoError(t, dead.StopProc(ctx))
}

func TestParseName(t *testing.T) {
	t.Parallel()
	p := host.ParseName("node_example-v2-local-f96054b7-web-5003")
	assert.Equal(t, host.NameParts{
		AppName:    "node_example",
		Version:    "v2",
		ConfigName: "local",
		Hash:       "f96054b7",
		ProcName:   "web",
		Port:       5003,
	}, p)
}

func TestParseNameUnparseable(t *testing.T) {
	t.Parallel()
	p := host.ParseName("dummyproc")
	assert.Equal(t, host.NameParts{
		AppName:    "dummyproc",
		Version:    "UNKNOWN",
		ConfigName: "UNKNOWN",
		Hash:       "UNKNOWN",
		ProcName:   "dummyproc",
	}, p)
}

func TestNameToShortname(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "node_example-v2-web",
		host.NameToShortname("node_example-v2-local-f96054b7-web-5003"))
}
