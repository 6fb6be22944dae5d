package vr

import (
	"context"
	"net/http"
	"net/url"
)

const buildsBase = "/api/v1/builds/"

// Build is one built artifact of an app at a tag.
type Build struct {
	Resource
}

// NewBuild wraps a build document.
func NewBuild(c *Client, doc map[string]interface{}) *Build {
	return &Build{newResource(c, buildsBase, doc)}
}

// Builds lists builds matching params.
func Builds(ctx context.Context, c *Client, params url.Values) ([]*Build, error) {
	docs, err := loadAll(ctx, c, buildsBase, params)
	if err != nil {
		return nil, err
	}
	builds := make([]*Build, len(docs))
	for i, doc := range docs {
		builds[i] = NewBuild(c, doc)
	}
	return builds, nil
}

// Assemble asks the server to build this artifact, creating the build
// record first if it does not exist yet.
func (b *Build) Assemble(ctx context.Context) error {
	if !b.Created() {
		if err := b.Create(ctx); err != nil {
			return err
		}
	}
	_, err := b.client.do(ctx, http.MethodPost, b.URI()+"build/", nil, nil, nil)
	return err
}
