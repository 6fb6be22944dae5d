package vr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const swarmsBase = "/api/v1/swarms/"

// Swarm is one deployable unit: an app at a version, run with a named
// config, scaled across squads.
type Swarm struct {
	Resource
}

// NewSwarm wraps a swarm document.
func NewSwarm(c *Client, doc map[string]interface{}) *Swarm {
	return &Swarm{newResource(c, swarmsBase, doc)}
}

// Swarms lists swarms matching params.
func Swarms(ctx context.Context, c *Client, params url.Values) ([]*Swarm, error) {
	docs, err := loadAll(ctx, c, swarmsBase, params)
	if err != nil {
		return nil, err
	}
	swarms := make([]*Swarm, len(docs))
	for i, doc := range docs {
		swarms[i] = NewSwarm(c, doc)
	}
	return swarms, nil
}

// SwarmByID fetches one swarm.
func SwarmByID(ctx context.Context, c *Client, id int) (*Swarm, error) {
	doc, err := loadByID(ctx, c, swarmsBase, id)
	if err != nil {
		return nil, err
	}
	return NewSwarm(c, doc), nil
}

// SwarmByName fetches the swarm named "app-config-proc".  App names may
// themselves contain dashes, so the name is split from the right.
func SwarmByName(ctx context.Context, c *Client, name string) (*Swarm, error) {
	appName, configName, procName, err := splitSwarmName(name)
	if err != nil {
		return nil, err
	}
	swarms, err := Swarms(ctx, c, url.Values{
		"app__name":   {appName},
		"config_name": {configName},
		"proc_name":   {procName},
	})
	if err != nil {
		return nil, err
	}
	switch len(swarms) {
	case 0:
		return nil, fmt.Errorf("no swarm named %q", name)
	case 1:
		return swarms[0], nil
	default:
		return nil, fmt.Errorf("%d swarms named %q", len(swarms), name)
	}
}

func splitSwarmName(name string) (appName, configName, procName string, err error) {
	parts := strings.Split(name, "-")
	if len(parts) < 3 {
		return "", "", "", fmt.Errorf("swarm name %q is not of the form app-config-proc", name)
	}
	appName = strings.Join(parts[:len(parts)-2], "-")
	configName = parts[len(parts)-2]
	procName = parts[len(parts)-1]
	return appName, configName, procName, nil
}

// Name returns the swarm's "app-config-proc" name.
func (s *Swarm) Name() string {
	return strings.Join([]string{
		s.GetString("app_name"),
		s.GetString("config_name"),
		s.GetString("proc_name"),
	}, "-")
}

// Version returns the tag the swarm is pinned to.
func (s *Swarm) Version() string { return s.GetString("version") }

// App returns the name of the swarm's app.
func (s *Swarm) App() string { return s.GetString("app_name") }

// Dispatch applies changes to the swarm (if any) and asks the server to
// swarm it out, returning the server's response document.
func (s *Swarm) Dispatch(ctx context.Context, changes map[string]interface{}) (map[string]interface{}, error) {
	if len(changes) > 0 {
		if err := s.Patch(ctx, changes); err != nil {
			return nil, err
		}
	}
	var result map[string]interface{}
	dispatchURL := s.URI() + "swarm/"
	if _, err := s.client.do(ctx, http.MethodPost, dispatchURL, nil, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// NewBuild returns an uncreated build of the swarm's app at the swarm's
// version.
func (s *Swarm) NewBuild() *Build {
	return NewBuild(s.client, map[string]interface{}{
		"app": appsBase + s.App() + "/",
		"tag": s.Version(),
	})
}
