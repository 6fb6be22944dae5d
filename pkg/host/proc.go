package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"
)

// ProcError is returned when you request a proc that doesn't exist.
type ProcError struct {
	Host string
	Name string
}

func (e *ProcError) Error() string {
	return fmt.Sprintf("host %s has no proc named %s", e.Host, e.Name)
}

// NameParts is the metadata Velociraptor encodes into a proc's Supervisor
// name, e.g. "node_example-v2-local-f96054b7-web-5003".
type NameParts struct {
	AppName    string
	Version    string
	ConfigName string
	Hash       string
	ProcName   string
	Port       int
}

// ParseName splits a proc name into its components.  Names that don't
// follow the app-version-config-hash-proc-port convention get UNKNOWN
// placeholders, with the whole name standing in for both the app and proc
// names.
func ParseName(name string) NameParts {
	parts := strings.Split(name, "-")
	if len(parts) == 6 {
		if port, err := strconv.Atoi(parts[5]); err == nil {
			return NameParts{
				AppName:    parts[0],
				Version:    parts[1],
				ConfigName: parts[2],
				Hash:       parts[3],
				ProcName:   parts[4],
				Port:       port,
			}
		}
	}
	return NameParts{
		AppName:    name,
		Version:    "UNKNOWN",
		ConfigName: "UNKNOWN",
		Hash:       "UNKNOWN",
		ProcName:   name,
	}
}

// NameToShortname converts a full proc name to its app-version-proc
// shortname without needing an RPC round trip for the rest of the data.
func NameToShortname(name string) string {
	p := ParseName(name)
	return p.AppName + "-" + p.Version + "-" + p.ProcName
}

// Proc is a representation of a proc running on a host: the Supervisor
// process info plus the metadata parsed out of the proc name.
type Proc struct {
	ProcInfo
	NameParts

	Host *Host `json:"-"`
}

func newProc(h *Host, info ProcInfo) *Proc {
	return &Proc{
		ProcInfo:  info,
		NameParts: ParseName(info.Name),
		Host:      h,
	}
}

func (p *Proc) String() string {
	return "<Proc " + p.Name + ">"
}

// Hostname returns the name of the host the proc runs on.
func (p *Proc) Hostname() string {
	return p.Host.Name
}

// ID identifies the proc uniquely across hosts.
func (p *Proc) ID() string {
	return p.Host.Name + "-" + p.Name
}

// Shortname returns app-version-proc.
func (p *Proc) Shortname() string {
	return p.AppName + "-" + p.Version + "-" + p.ProcName
}

// AsNode returns host:port, as needed by the balancer interface.
func (p *Proc) AsNode() string {
	return fmt.Sprintf("%s:%d", p.Host.Name, p.Port)
}

// StartTime returns when Supervisor started the proc, or nil if it never
// has.  (Supervisor puts a 0 where a timestamp doesn't apply.)
func (p *Proc) StartTime() *time.Time { return tsOrNil(p.Start) }

// StopTime returns when Supervisor stopped the proc, or nil.
func (p *Proc) StopTime() *time.Time { return tsOrNil(p.Stop) }

// LocalTime returns the host's clock reading when the info was sampled,
// or nil.
func (p *Proc) LocalTime() *time.Time { return tsOrNil(p.Now) }

func tsOrNil(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// Settings fetches the proc.yaml data the Velociraptor Supervisor plugin
// keeps for this proc, or nil if the plugin isn't available.
func (p *Proc) Settings(ctx context.Context) (*ProcData, error) {
	return p.Host.Supervisor.GetVelociraptorInfo(ctx, p.Name)
}

// AsJSON serializes the proc the way the cache and the event stream
// expect it: the supervisor info plus a "host" key.
func (p *Proc) AsJSON() ([]byte, error) {
	doc := make(map[string]interface{})
	raw, err := json.Marshal(p.ProcInfo)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc["host"] = p.Host.Name
	return json.Marshal(doc)
}

// StartProc starts the proc, tolerating Supervisor's complaint if it is
// already running.
func (p *Proc) StartProc(ctx context.Context) error {
	err := p.Host.Supervisor.StartProcess(ctx, p.Name)
	switch {
	case err == nil:
		return nil
	case faultMatches(err, "ALREADY_STARTED"):
		dlog.Warnf(ctx, "Process %s already started", p.Name)
		return nil
	default:
		return fmt.Errorf("failed to start %s: %w", p.Name, err)
	}
}

// StopProc stops the proc, tolerating Supervisor's complaint if it is not
// running.
func (p *Proc) StopProc(ctx context.Context) error {
	err := p.Host.Supervisor.StopProcess(ctx, p.Name)
	switch {
	case err == nil:
		return nil
	case faultMatches(err, "NOT_RUNNING"):
		dlog.Warnf(ctx, "Process %s not running", p.Name)
		return nil
	default:
		return fmt.Errorf("failed to stop %s: %w", p.Name, err)
	}
}

// Restart stops and then starts the proc.
func (p *Proc) Restart(ctx context.Context) error {
	if err := p.StopProc(ctx); err != nil {
		return err
	}
	return p.StartProc(ctx)
}
