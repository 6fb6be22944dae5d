// Package varnish is a balancer backend that maintains one VCL director
// file per pool on each varnish host, pushed over SSH.
package varnish

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yougov/vr-common/pkg/balancer"
)

const (
	defaultPoolDir   = "/etc/varnish/pools.d"
	defaultReloadCmd = "service varnish reload"
)

func init() {
	balancer.Register("varnish", New)
}

// New builds the varnish backend from cfg.  Only the SSH fields plus
// pool_dir and reload_cmd are consulted.
func New(cfg balancer.Config) (balancer.Balancer, error) {
	poolDir := cfg.PoolDir
	if poolDir == "" {
		poolDir = defaultPoolDir
	}
	if cfg.ReloadCmd == "" {
		cfg.ReloadCmd = defaultReloadCmd
	}
	return balancer.NewSSHBalancer(&poolFile{dir: poolDir}, cfg), nil
}

// poolFile renders and parses the per-pool VCL snippet.
type poolFile struct {
	dir string
}

var _ balancer.PoolFile = (*poolFile)(nil)

func (p *poolFile) Path(pool string) string {
	return path.Join(p.dir, pool+".vcl")
}

// vclName mangles a pool name into a legal VCL identifier.
var vclUnsafe = regexp.MustCompile(`[^A-Za-z0-9_]`)

func vclName(pool string) string {
	return vclUnsafe.ReplaceAllString(pool, "_")
}

// Render writes the director block for a pool.  Nodes are expected as
// host:port strings; a node without a port gets varnish's default of 80.
func (p *poolFile) Render(pool string, nodes []string) []byte {
	name := vclName(pool)
	var sb strings.Builder
	for i, node := range nodes {
		nodeHost, port, found := strings.Cut(node, ":")
		if !found {
			port = "80"
		}
		fmt.Fprintf(&sb, "backend %s_%d { .host = \"%s\"; .port = \"%s\"; }\n",
			name, i, nodeHost, port)
	}
	fmt.Fprintf(&sb, "director %s round-robin {\n", name)
	for i := range nodes {
		fmt.Fprintf(&sb, "  { .backend = %s_%d; }\n", name, i)
	}
	sb.WriteString("}\n")
	return []byte(sb.String())
}

var backendLine = regexp.MustCompile(
	`\.host\s*=\s*"([^"]+)"\s*;\s*\.port\s*=\s*"([^"]+)"`)

func (p *poolFile) Parse(contents []byte) (sets.Set[string], error) {
	nodes := sets.New[string]()
	for _, m := range backendLine.FindAllStringSubmatch(string(contents), -1) {
		nodes.Insert(m[1] + ":" + m[2])
	}
	return nodes, nil
}
