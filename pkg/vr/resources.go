package vr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Resource is one API document together with the collection it lives
// in.  The API's documents are open-ended, so the fields live in Doc
// and typed resources layer accessors on top.
type Resource struct {
	client *Client
	base   string
	Doc    map[string]interface{}
}

func newResource(c *Client, base string, doc map[string]interface{}) Resource {
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return Resource{client: c, base: base, Doc: doc}
}

// GetString returns the named document field, or "" when absent or not
// a string.
func (r *Resource) GetString(key string) string {
	s, _ := r.Doc[key].(string)
	return s
}

// GetInt returns the named document field as an int.  JSON numbers
// decode as float64, so both forms are accepted.
func (r *Resource) GetInt(key string) (int, bool) {
	switch v := r.Doc[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// URI returns the document's resource_uri, or "" if it has not been
// created yet.
func (r *Resource) URI() string {
	return r.GetString("resource_uri")
}

// Created reports whether the document exists on the server.
func (r *Resource) Created() bool {
	_, ok := r.Doc["id"]
	return ok
}

// Load replaces the document with the one at uri.
func (r *Resource) Load(ctx context.Context, uri string) error {
	var doc map[string]interface{}
	if _, err := r.client.do(ctx, http.MethodGet, uri, nil, nil, &doc); err != nil {
		return err
	}
	r.Doc = doc
	return nil
}

// Create posts the document to its collection and reloads it from the
// Location the API hands back.
func (r *Resource) Create(ctx context.Context) error {
	resp, err := r.client.do(ctx, http.MethodPost, r.base, nil, r.Doc, nil)
	if err != nil {
		return err
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return fmt.Errorf("POST %s: no Location header in response", r.base)
	}
	return r.Load(ctx, location)
}

// Save writes the whole document back with a PUT.
func (r *Resource) Save(ctx context.Context) error {
	uri := r.URI()
	if uri == "" {
		return r.Create(ctx)
	}
	_, err := r.client.do(ctx, http.MethodPut, uri, nil, r.Doc, nil)
	return err
}

// Patch sends just the changed fields and applies them locally on
// success.
func (r *Resource) Patch(ctx context.Context, changes map[string]interface{}) error {
	uri := r.URI()
	if uri == "" {
		return fmt.Errorf("cannot patch a resource that has not been created")
	}
	if _, err := r.client.do(ctx, http.MethodPatch, uri, nil, changes, nil); err != nil {
		return err
	}
	for key, val := range changes {
		r.Doc[key] = val
	}
	return nil
}

// loadAll fetches every document in a collection matching params.
func loadAll(
	ctx context.Context,
	c *Client,
	base string,
	params url.Values,
) ([]map[string]interface{}, error) {
	return c.Query(ctx, base, params).All(ctx)
}

// loadByID fetches one document by its numeric ID.
func loadByID(
	ctx context.Context,
	c *Client,
	base string,
	id int,
) (map[string]interface{}, error) {
	var doc map[string]interface{}
	uri := fmt.Sprintf("%s%d/", base, id)
	if _, err := c.do(ctx, http.MethodGet, uri, nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
