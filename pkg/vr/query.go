package vr

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Done is returned by QueryResult.Next when a query has no more
// objects.
var Done = errors.New("no more results")

// QueryResult iterates over a paginated collection, fetching pages as
// needed.
type QueryResult struct {
	client *Client
	url    string
	params url.Values
	page   *resultPage
	index  int
}

type resultPage struct {
	Objects []map[string]interface{} `json:"objects"`
	Meta    struct {
		Next string `json:"next"`
	} `json:"meta"`
}

// Next returns the next object in the result, or Done when the result
// is exhausted.
func (q *QueryResult) Next(ctx context.Context) (map[string]interface{}, error) {
	for {
		if q.page == nil {
			if err := q.load(ctx); err != nil {
				return nil, err
			}
		}
		if q.index < len(q.page.Objects) {
			obj := q.page.Objects[q.index]
			q.index++
			return obj, nil
		}
		if q.page.Meta.Next == "" {
			return nil, Done
		}
		if err := q.advance(q.page.Meta.Next); err != nil {
			return nil, err
		}
	}
}

// All drains the remaining pages into a slice.
func (q *QueryResult) All(ctx context.Context) ([]map[string]interface{}, error) {
	var objects []map[string]interface{}
	for {
		obj, err := q.Next(ctx)
		if errors.Is(err, Done) {
			return objects, nil
		}
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
}

func (q *QueryResult) load(ctx context.Context) error {
	var page resultPage
	if _, err := q.client.do(ctx, http.MethodGet, q.url, q.params, nil, &page); err != nil {
		return err
	}
	q.page = &page
	q.index = 0
	return nil
}

// advance re-aims the query at the "next" URL the API handed back,
// merging its query string into the current params (so filters the next
// URL omits stay applied) and making sure the path keeps its trailing
// slash so the API does not redirect us.
func (q *QueryResult) advance(next string) error {
	u, err := url.Parse(next)
	if err != nil {
		return err
	}
	params := make(url.Values, len(q.params))
	for key, vals := range q.params {
		params[key] = vals
	}
	for key, vals := range u.Query() {
		params[key] = vals
	}
	q.params = params
	u.RawQuery = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	q.url = u.String()
	q.page = nil
	q.index = 0
	return nil
}
