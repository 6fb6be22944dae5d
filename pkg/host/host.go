// Package host is an abstraction over the per-host Supervisor RPC
// interface.  It is used by the Velociraptor web procs, the command line
// client, and Supervisor event listeners.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/datawire/dlib/dlog"
	"github.com/redis/go-redis/v9"
)

const (
	defaultCachePrefix   = "host_procs"
	defaultCacheLifetime = 600 * time.Second

	// One retry after the initial attempt, so two tries total.
	supervisorRetries = 1
)

// Config describes how to reach a host's Supervisor, and optionally a
// redis server for caching proc info.
type Config struct {
	Name string

	// RPC is an existing Supervisor connection.  When nil, an XML-RPC
	// client is dialed on RPCPort.
	RPC     Supervisor
	RPCPort int

	SupervisorUsername string
	SupervisorPassword string

	// RedisClient or RedisURL enables the proc cache.  Both unset means
	// no caching.
	RedisClient redis.UniversalClient
	RedisURL    string

	CachePrefix   string
	CacheLifetime time.Duration
}

// Host wraps one Supervisor-managed host.
//
// Call GetProcs to get a list of Proc values for all Supervisor-managed
// processes on the host, or GetProc for a single one by name; both take a
// checkCache flag allowing reads to be served from the redis cache.
type Host struct {
	Name       string
	Supervisor Supervisor

	redis         redis.UniversalClient
	cacheKey      string
	cacheLifetime time.Duration
}

// New builds a Host from cfg.
func New(cfg Config) (*Host, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("host: name is required")
	}

	sup := cfg.RPC
	if sup == nil {
		var err error
		sup, err = DialSupervisor(
			cfg.Name, cfg.RPCPort, cfg.SupervisorUsername, cfg.SupervisorPassword)
		if err != nil {
			return nil, err
		}
	}

	rdb := cfg.RedisClient
	if rdb == nil && cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("host: parsing redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
	}

	prefix := cfg.CachePrefix
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	lifetime := cfg.CacheLifetime
	if lifetime == 0 {
		lifetime = defaultCacheLifetime
	}

	return &Host{
		Name:          cfg.Name,
		Supervisor:    sup,
		redis:         rdb,
		cacheKey:      prefix + ":" + cfg.Name,
		cacheLifetime: lifetime,
	}, nil
}

// Shortname returns the host name up to the first dot.
func (h *Host) Shortname() string {
	name, _, _ := strings.Cut(h.Name, ".")
	return name
}

func (h *Host) String() string {
	return "<Host " + h.Name + ">"
}

// GetProc returns the named proc.  With checkCache, the redis cache may
// satisfy the read; a cache miss falls through to the supervisor and
// refreshes the cache.  If the host has no proc with that name, a
// *ProcError is returned.
func (h *Host) GetProc(ctx context.Context, name string, checkCache bool) (*Proc, error) {
	if checkCache && h.redis != nil {
		cached, err := h.redis.HGet(ctx, h.cacheKey, name).Result()
		if err == nil {
			var info ProcInfo
			if err := json.Unmarshal([]byte(cached), &info); err == nil {
				return newProc(h, info), nil
			}
		}
	}

	procs := h.getAndCacheProcs(ctx)
	info, ok := procs[name]
	if !ok {
		return nil, &ProcError{Host: h.Name, Name: name}
	}
	return newProc(h, info), nil
}

// GetProcs returns Proc values for every Supervisor-managed process on the
// host.  With checkCache, a warm redis cache is used instead of an RPC
// round trip.
func (h *Host) GetProcs(ctx context.Context, checkCache bool) ([]*Proc, error) {
	var all map[string]ProcInfo

	if checkCache && h.redis != nil {
		cached, err := h.redis.HGetAll(ctx, h.cacheKey).Result()
		if err == nil && len(cached) > 0 {
			all = make(map[string]ProcInfo, len(cached))
			for name, raw := range cached {
				var info ProcInfo
				if err := json.Unmarshal([]byte(raw), &info); err != nil {
					return nil, fmt.Errorf("host %s: corrupt cache entry for %s: %w",
						h.Name, name, err)
				}
				all[name] = info
			}
		}
	}

	if all == nil {
		all = h.getAndCacheProcs(ctx)
	}

	procs := make([]*Proc, 0, len(all))
	for _, info := range all {
		procs = append(procs, newProc(h, info))
	}
	return procs, nil
}

// getAndCacheProcs fetches proc info from the supervisor (retrying with
// backoff) and refreshes the redis cache.  An unreachable supervisor is
// logged and yields an empty map, so that one dead host doesn't take out a
// whole dashboard of them.
func (h *Host) getAndCacheProcs(ctx context.Context) map[string]ProcInfo {
	var infos []ProcInfo
	op := func() error {
		var err error
		infos, err = h.Supervisor.GetAllProcessInfo(ctx)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), supervisorRetries), ctx))
	if err != nil {
		dlog.Errorf(ctx, "Failed to connect to %s: %v", h, err)
		return map[string]ProcInfo{}
	}

	// getAllProcessInfo returns a list.  Reshape that into a map keyed by
	// proc name.
	procs := make(map[string]ProcInfo, len(infos))
	for _, info := range infos {
		procs[info.Name] = info
	}

	if h.redis != nil {
		dumped := make(map[string]interface{}, len(procs))
		for name, info := range procs {
			raw, err := json.Marshal(info)
			if err != nil {
				dlog.Errorf(ctx, "Failed to serialize proc %s: %v", name, err)
				continue
			}
			dumped[name] = string(raw)
		}
		// Pipeline so the clear, set, and expiration land in one redis
		// round trip.
		pipe := h.redis.Pipeline()
		pipe.Del(ctx, h.cacheKey)
		if len(dumped) > 0 {
			pipe.HSet(ctx, h.cacheKey, dumped)
		}
		pipe.Expire(ctx, h.cacheKey, h.cacheLifetime)
		if _, err := pipe.Exec(ctx); err != nil {
			dlog.Errorf(ctx, "Failed to cache procs for %s: %v", h.Name, err)
		}
	}

	return procs
}
