package vr

import (
	"context"
	"net/http"
	"net/url"

	"sigs.k8s.io/yaml"
)

const releasesBase = "/api/v1/releases/"

// Release is one build paired with a compiled config, ready to deploy.
type Release struct {
	Resource
}

// NewRelease wraps a release document.
func NewRelease(c *Client, doc map[string]interface{}) *Release {
	return &Release{newResource(c, releasesBase, doc)}
}

// Releases lists releases matching params.
func Releases(ctx context.Context, c *Client, params url.Values) ([]*Release, error) {
	docs, err := loadAll(ctx, c, releasesBase, params)
	if err != nil {
		return nil, err
	}
	releases := make([]*Release, len(docs))
	for i, doc := range docs {
		releases[i] = NewRelease(c, doc)
	}
	return releases, nil
}

// ReleaseByID fetches one release.
func ReleaseByID(ctx context.Context, c *Client, id int) (*Release, error) {
	doc, err := loadByID(ctx, c, releasesBase, id)
	if err != nil {
		return nil, err
	}
	return NewRelease(c, doc), nil
}

// Deploy asks the server to run this release as procName on host:port
// under configName.
func (r *Release) Deploy(ctx context.Context, host string, port int, procName, configName string) error {
	body := map[string]interface{}{
		"host":        host,
		"port":        port,
		"proc":        procName,
		"config_name": configName,
	}
	_, err := r.client.do(ctx, http.MethodPost, r.URI()+"deploy/", nil, body, nil)
	return err
}

// ParsedConfig decodes the release's YAML config_yaml field.
func (r *Release) ParsedConfig() (map[string]interface{}, error) {
	var config map[string]interface{}
	raw := r.GetString("config_yaml")
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &config); err != nil {
		return nil, err
	}
	return config, nil
}
