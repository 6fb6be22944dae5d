// Package balancer defines the load-balancer interface that Velociraptor
// uses to route traffic to swarms, plus the registry that config-driven
// construction goes through.  Concrete drivers live in subpackages.
package balancer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/datawire/dlib/dlog"
	"sigs.k8s.io/yaml"
)

// Balancer is one pool-managing load balancer.  Nodes are "host:port"
// strings.
type Balancer interface {
	AddNodes(ctx context.Context, pool string, nodes []string) error
	DeleteNodes(ctx context.Context, pool string, nodes []string) error
	GetNodes(ctx context.Context, pool string) ([]string, error)
	DeletePool(ctx context.Context, pool string) error
}

// DeletePoolIfEmpty deletes the pool if it no longer has any nodes.
func DeletePoolIfEmpty(ctx context.Context, b Balancer, pool string) error {
	nodes, err := b.GetNodes(ctx, pool)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		return nil
	}
	dlog.Infof(ctx, "Deleting empty pool %s", pool)
	return b.DeletePool(ctx, pool)
}

// Config is one balancer definition from the balancers config file.  Which
// fields matter depends on the backend.
type Config struct {
	Backend string `json:"backend"`

	// SSH-file-based backends (varnish).
	User      string   `json:"user,omitempty"`
	Password  string   `json:"password,omitempty"`
	Hosts     []string `json:"hosts,omitempty"`
	TmpDir    string   `json:"tmpdir,omitempty"`
	PoolDir   string   `json:"pool_dir,omitempty"`
	ReloadCmd string   `json:"reload_cmd,omitempty"`

	// API-based backends (stingray).
	URL        string `json:"url,omitempty"`
	PoolPrefix string `json:"pool_prefix,omitempty"`
	// Seconds to let connections drain between disabling and removing
	// nodes.
	GracePeriod *int `json:"grace_period,omitempty"`

	// Chained backend.
	Balancers []Config `json:"balancers,omitempty"`
}

// Factory builds a Balancer from its config.
type Factory func(Config) (Balancer, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to New under the given name.  Driver
// packages call this from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("balancer: duplicate backend " + name)
	}
	registry[name] = factory
}

// New builds the balancer cfg describes.
func New(cfg Config) (Balancer, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("balancer: unknown backend %q", cfg.Backend)
	}
	return factory(cfg)
}

// ParseConfig decodes a YAML document mapping balancer names to their
// definitions.
func ParseConfig(data []byte) (map[string]Config, error) {
	var cfgs map[string]Config
	if err := yaml.UnmarshalStrict(data, &cfgs); err != nil {
		return nil, fmt.Errorf("balancer: parsing config: %w", err)
	}
	return cfgs, nil
}

// LoadConfigFile reads a balancer config file and builds the named
// balancer from it.
func LoadConfigFile(path, name string) (Balancer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfgs, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	cfg, ok := cfgs[name]
	if !ok {
		names := make([]string, 0, len(cfgs))
		for n := range cfgs {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("balancer: %q not defined in %s (have %v)", name, path, names)
	}
	return New(cfg)
}
