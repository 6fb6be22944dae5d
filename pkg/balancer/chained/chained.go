// Package chained is a balancer backend that fans every operation out to
// several other balancers, for setups where traffic enters through more
// than one traffic manager.
//
// Configure with:
//
//	my-balancer:
//	  backend: chained
//	  balancers:
//	  - backend: stingray
//	    url: https://some-url/
//	    user: user
//	    password: secret
//	    pool_prefix: 'Auto vraptor-'
//	  - backend: stingray
//	    url: https://some-other-url/
//	    user: other-user
//	    password: more-secret
//	    pool_prefix: 'Auto vraptor-'
package chained

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yougov/vr-common/pkg/balancer"
)

func init() {
	balancer.Register("chained", New)
}

// Balancer fans out to its children.
type Balancer struct {
	children []balancer.Balancer
}

var _ balancer.Balancer = (*Balancer)(nil)

// New builds every child balancer named in cfg.Balancers.
func New(cfg balancer.Config) (balancer.Balancer, error) {
	if len(cfg.Balancers) == 0 {
		return nil, fmt.Errorf("chained: no child balancers configured")
	}
	children := make([]balancer.Balancer, 0, len(cfg.Balancers))
	for _, childCfg := range cfg.Balancers {
		child, err := balancer.New(childCfg)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Balancer{children: children}, nil
}

func (b *Balancer) AddNodes(ctx context.Context, pool string, nodes []string) error {
	for _, child := range b.children {
		if err := child.AddNodes(ctx, pool, nodes); err != nil {
			return err
		}
	}
	return nil
}

func (b *Balancer) DeleteNodes(ctx context.Context, pool string, nodes []string) error {
	for _, child := range b.children {
		if err := child.DeleteNodes(ctx, pool, nodes); err != nil {
			return err
		}
	}
	return nil
}

// GetNodes returns the sorted union of all the children's views.
func (b *Balancer) GetNodes(ctx context.Context, pool string) ([]string, error) {
	nodes := sets.New[string]()
	for _, child := range b.children {
		childNodes, err := child.GetNodes(ctx, pool)
		if err != nil {
			return nil, err
		}
		nodes.Insert(childNodes...)
	}
	return sets.List(nodes), nil
}

func (b *Balancer) DeletePool(ctx context.Context, pool string) error {
	for _, child := range b.children {
		if err := child.DeletePool(ctx, pool); err != nil {
			return err
		}
	}
	return nil
}
