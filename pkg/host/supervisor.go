package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

const (
	// DefaultRPCPort is the port Supervisor's XML-RPC interface usually
	// listens on.
	DefaultRPCPort = 9001

	rpcTimeout = 10 * time.Second
)

// ProcInfo is what Supervisor's getProcessInfo/getAllProcessInfo calls
// return for one managed process.  The json tags are used by the redis
// proc cache.
type ProcInfo struct {
	Name          string `xmlrpc:"name" json:"name"`
	Group         string `xmlrpc:"group" json:"group"`
	Description   string `xmlrpc:"description" json:"description"`
	Start         int64  `xmlrpc:"start" json:"start"`
	Stop          int64  `xmlrpc:"stop" json:"stop"`
	Now           int64  `xmlrpc:"now" json:"now"`
	State         int    `xmlrpc:"state" json:"state"`
	StateName     string `xmlrpc:"statename" json:"statename"`
	SpawnErr      string `xmlrpc:"spawnerr" json:"spawnerr"`
	ExitStatus    int    `xmlrpc:"exitstatus" json:"exitstatus"`
	Logfile       string `xmlrpc:"logfile" json:"logfile"`
	StdoutLogfile string `xmlrpc:"stdout_logfile" json:"stdout_logfile"`
	StderrLogfile string `xmlrpc:"stderr_logfile" json:"stderr_logfile"`
	PID           int    `xmlrpc:"pid" json:"pid"`
}

// Supervisor is the slice of the per-host Supervisor RPC interface that
// this package needs.  The production implementation speaks XML-RPC; tests
// substitute a fake.
type Supervisor interface {
	GetAllProcessInfo(ctx context.Context) ([]ProcInfo, error)
	GetProcessInfo(ctx context.Context, name string) (ProcInfo, error)
	StartProcess(ctx context.Context, name string) error
	StopProcess(ctx context.Context, name string) error

	// GetVelociraptorInfo returns the proc.yaml document the Velociraptor
	// Supervisor plugin keeps for a proc, or nil if the plugin isn't
	// installed.
	GetVelociraptorInfo(ctx context.Context, name string) (*ProcData, error)
}

// rpcSupervisor talks to a real Supervisor over XML-RPC with a dial and
// response timeout.
type rpcSupervisor struct {
	client *xmlrpc.Client
}

var _ Supervisor = (*rpcSupervisor)(nil)

// DialSupervisor connects to the Supervisor RPC service on hostname:port.
// Credentials may be empty if the RPC interface is unauthenticated.
func DialSupervisor(hostname string, port int, username, password string) (Supervisor, error) {
	if port == 0 {
		port = DefaultRPCPort
	}
	u := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", hostname, port),
		Path:   "/RPC2",
	}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: rpcTimeout}).DialContext,
		ResponseHeaderTimeout: rpcTimeout,
	}
	client, err := xmlrpc.NewClient(u.String(), transport)
	if err != nil {
		return nil, err
	}
	return &rpcSupervisor{client: client}, nil
}

func (s *rpcSupervisor) GetAllProcessInfo(_ context.Context) ([]ProcInfo, error) {
	var infos []ProcInfo
	if err := s.client.Call("supervisor.getAllProcessInfo", nil, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (s *rpcSupervisor) GetProcessInfo(_ context.Context, name string) (ProcInfo, error) {
	var info ProcInfo
	if err := s.client.Call("supervisor.getProcessInfo", name, &info); err != nil {
		return ProcInfo{}, err
	}
	return info, nil
}

func (s *rpcSupervisor) StartProcess(_ context.Context, name string) error {
	var ok bool
	return s.client.Call("supervisor.startProcess", name, &ok)
}

func (s *rpcSupervisor) StopProcess(_ context.Context, name string) error {
	var ok bool
	return s.client.Call("supervisor.stopProcess", name, &ok)
}

func (s *rpcSupervisor) GetVelociraptorInfo(_ context.Context, name string) (*ProcData, error) {
	var settings map[string]interface{}
	if err := s.client.Call("vr.get_velociraptor_info", name, &settings); err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return nil, nil
	}
	return procDataFromMap(settings)
}

// faultMatches reports whether err is a Supervisor XML-RPC fault whose
// fault string starts with the given code (Supervisor fault strings look
// like "ALREADY_STARTED" or "BAD_NAME: procname").
func faultMatches(err error, code string) bool {
	var fault xmlrpc.FaultError
	if !errors.As(err, &fault) {
		return false
	}
	return fault.String == code || strings.HasPrefix(fault.String, code+":")
}
