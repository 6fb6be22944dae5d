// Package stingray is a balancer backend driving the Stingray (Zeus ZXTM)
// traffic manager through its SOAP Pool API.
package stingray

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/datawire/dlib/dlog"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yougov/vr-common/pkg/balancer"
)

// Stingray has separate calls for disabling and removing nodes; the latter
// interrupts current connections.  To minimize disruption we disable
// first, wait this long, and then remove.
const defaultGracePeriod = 2 * time.Second

func init() {
	balancer.Register("stingray", New)
}

// Balancer talks to one ZXTM instance.
type Balancer struct {
	url        string
	user       string
	password   string
	poolPrefix string

	gracePeriod time.Duration
	httpClient  *http.Client
}

var _ balancer.Balancer = (*Balancer)(nil)

// New builds the stingray backend from cfg.  url, user, and password are
// required; pool_prefix is prepended to every pool name, and grace_period
// overrides the disable-to-remove delay (seconds).
func New(cfg balancer.Config) (balancer.Balancer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stingray: url is required")
	}
	b := &Balancer{
		url:         cfg.URL,
		user:        cfg.User,
		password:    cfg.Password,
		poolPrefix:  cfg.PoolPrefix,
		gracePeriod: defaultGracePeriod,
		httpClient:  http.DefaultClient,
	}
	if cfg.GracePeriod != nil {
		b.gracePeriod = time.Duration(*cfg.GracePeriod) * time.Second
	}
	return b, nil
}

// AddNodes adds nodes to the pool, creating the pool if it doesn't exist
// yet.  (Stingray kindly avoids creating duplicates if you submit a node
// that is already in the pool.)
func (b *Balancer) AddNodes(ctx context.Context, pool string, nodes []string) error {
	dlog.Infof(ctx, "Adding nodes %v to pool %s", nodes, pool)
	err := b.nodeCall(ctx, "addNodes", "values", pool, nodes)
	if isUnknownPool(err) {
		return b.addPool(ctx, pool, nodes)
	}
	return err
}

// DeleteNodes disables the given nodes, waits out the grace period, and
// then removes them; an empty pool is deleted afterwards.  A pool that
// doesn't exist is fine.
func (b *Balancer) DeleteNodes(ctx context.Context, pool string, nodes []string) error {
	existing, err := b.GetNodes(ctx, pool)
	if err != nil {
		return err
	}
	doomed := sets.List(sets.New(existing...).Intersection(sets.New(nodes...)))
	if len(doomed) == 0 {
		dlog.Infof(ctx, "No nodes to delete from pool %s", pool)
		return nil
	}

	dlog.Infof(ctx, "Deleting nodes %v from pool %s", doomed, pool)
	err = b.nodeCall(ctx, "disableNodes", "nodes", pool, doomed)
	switch {
	case isUnknownPool(err):
		return nil
	case err != nil:
		return err
	}

	// Wait for connections to finish before zapping nodes completely.
	select {
	case <-time.After(b.gracePeriod):
	case <-ctx.Done():
		return ctx.Err()
	}

	err = b.nodeCall(ctx, "removeNodes", "values", pool, doomed)
	switch {
	case isUnknownPool(err):
		return nil
	case err != nil:
		return err
	}

	return balancer.DeletePoolIfEmpty(ctx, b, pool)
}

// GetNodes returns the pool's nodes; an unknown pool has none.
func (b *Balancer) GetNodes(ctx context.Context, pool string) ([]string, error) {
	dlog.Infof(ctx, "Getting nodes for pool %s", pool)
	envelope := buildEnvelope("getNodes", []string{b.poolPrefix + pool}, "", nil)
	body, err := b.call(ctx, "getNodes", envelope)
	if isUnknownPool(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lists, err := parseNodeLists(body)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, nil
	}
	// Just the first item from the array-of-arrays: one pool was asked
	// about.
	return lists[0], nil
}

// DeletePool deletes the pool; a pool that doesn't exist is fine.
func (b *Balancer) DeletePool(ctx context.Context, pool string) error {
	dlog.Infof(ctx, "Deleting pool %s", pool)
	envelope := buildEnvelope("deletePool", []string{b.poolPrefix + pool}, "", nil)
	_, err := b.call(ctx, "deletePool", envelope)
	if isUnknownPool(err) {
		return nil
	}
	return err
}

func (b *Balancer) addPool(ctx context.Context, pool string, nodes []string) error {
	dlog.Infof(ctx, "Adding new pool %s", pool)
	return b.nodeCall(ctx, "addPool", "nodes", pool, nodes)
}

// nodeCall invokes one of the Pool methods that take an array of pools and
// an array-of-arrays of nodes.
func (b *Balancer) nodeCall(ctx context.Context, method, paramName, pool string, nodes []string) error {
	envelope := buildEnvelope(method, []string{b.poolPrefix + pool}, paramName, nodes)
	_, err := b.call(ctx, method, envelope)
	return err
}
