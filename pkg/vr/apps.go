package vr

import (
	"context"
	"net/url"
)

const (
	appsBase       = "/api/v1/apps/"
	buildpacksBase = "/api/v1/buildpacks/"
	squadsBase     = "/api/v1/squads/"
)

// App is one deployable codebase.
type App struct {
	Resource
}

// NewApp wraps an app document.
func NewApp(c *Client, doc map[string]interface{}) *App {
	return &App{newResource(c, appsBase, doc)}
}

// Apps lists apps matching params.
func Apps(ctx context.Context, c *Client, params url.Values) ([]*App, error) {
	docs, err := loadAll(ctx, c, appsBase, params)
	if err != nil {
		return nil, err
	}
	apps := make([]*App, len(docs))
	for i, doc := range docs {
		apps[i] = NewApp(c, doc)
	}
	return apps, nil
}

// Buildpack turns an app checkout into a runnable build.
type Buildpack struct {
	Resource
}

// NewBuildpack wraps a buildpack document.
func NewBuildpack(c *Client, doc map[string]interface{}) *Buildpack {
	return &Buildpack{newResource(c, buildpacksBase, doc)}
}

// Buildpacks lists buildpacks matching params.
func Buildpacks(ctx context.Context, c *Client, params url.Values) ([]*Buildpack, error) {
	docs, err := loadAll(ctx, c, buildpacksBase, params)
	if err != nil {
		return nil, err
	}
	buildpacks := make([]*Buildpack, len(docs))
	for i, doc := range docs {
		buildpacks[i] = NewBuildpack(c, doc)
	}
	return buildpacks, nil
}

// Squad is a named group of hosts that swarms spread across.
type Squad struct {
	Resource
}

// NewSquad wraps a squad document.
func NewSquad(c *Client, doc map[string]interface{}) *Squad {
	return &Squad{newResource(c, squadsBase, doc)}
}

// Squads lists squads matching params.
func Squads(ctx context.Context, c *Client, params url.Values) ([]*Squad, error) {
	docs, err := loadAll(ctx, c, squadsBase, params)
	if err != nil {
		return nil, err
	}
	squads := make([]*Squad, len(docs))
	for i, doc := range docs {
		squads[i] = NewSquad(c, doc)
	}
	return squads, nil
}

// Hosts returns the squad's host resource URIs.
func (s *Squad) Hosts() []string {
	raw, _ := s.Doc["hosts"].([]interface{})
	hosts := make([]string, 0, len(raw))
	for _, h := range raw {
		if name, ok := h.(string); ok {
			hosts = append(hosts, name)
		}
	}
	return hosts
}
