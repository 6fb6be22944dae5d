package vr_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yougov/vr-common/pkg/vr"
)

// fakeAPI serves a minimal slice of the deployment API for resource
// tests, recording the mutating requests it sees.
type fakeAPI struct {
	t      *testing.T
	swarms []map[string]interface{}
	calls  []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/swarms/":
		writeJSON(f.t, w, map[string]interface{}{"objects": f.swarms})
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/swarms/8/":
		writeJSON(f.t, w, f.swarms[0])
	case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/swarms/8/":
		var changes map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&changes))
		for key, val := range changes {
			f.swarms[0][key] = val
		}
		w.WriteHeader(http.StatusAccepted)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/swarms/8/swarm/":
		writeJSON(f.t, w, map[string]interface{}{"dispatched": true})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/builds/":
		w.Header().Set("Location", "/api/v1/builds/5/")
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/builds/5/":
		writeJSON(f.t, w, map[string]interface{}{
			"id":           5,
			"resource_uri": "/api/v1/builds/5/",
			"app":          "/api/v1/apps/1/",
			"tag":          "v2.4.1",
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/builds/5/build/":
		w.WriteHeader(http.StatusAccepted)
	default:
		http.NotFound(w, r)
	}
}

func newSwarmFixture() []map[string]interface{} {
	return []map[string]interface{}{{
		"id":           8,
		"resource_uri": "/api/v1/swarms/8/",
		"app":          "/api/v1/apps/1/",
		"app_name":     "node-example",
		"config_name":  "prod",
		"proc_name":    "web",
		"version":      "v2.4.1",
	}}
}

func TestSwarmByName(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t, swarms: newSwarmFixture()}
	c := newTestClient(t, api)

	swarm, err := vr.SwarmByName(ctx, c, "node-example-prod-web")
	require.NoError(t, err)
	assert.Equal(t, "node-example-prod-web", swarm.Name())
	assert.Equal(t, "v2.4.1", swarm.Version())
}

func TestSwarmByNameRejectsShortNames(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	c := newTestClient(t, http.NotFoundHandler())
	_, err := vr.SwarmByName(ctx, c, "prod-web")
	assert.Error(t, err)
}

func TestSwarmByNameNotFound(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t}
	c := newTestClient(t, api)

	_, err := vr.SwarmByName(ctx, c, "nosuch-prod-web")
	assert.ErrorContains(t, err, "no swarm named")
}

func TestSwarmDispatch(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t, swarms: newSwarmFixture()}
	c := newTestClient(t, api)

	swarm, err := vr.SwarmByID(ctx, c, 8)
	require.NoError(t, err)

	result, err := swarm.Dispatch(ctx, map[string]interface{}{"version": "v2.5.0"})
	require.NoError(t, err)
	assert.Equal(t, true, result["dispatched"])
	assert.Equal(t, "v2.5.0", swarm.Version())

	assert.Equal(t, []string{
		"GET /api/v1/swarms/8/",
		"PATCH /api/v1/swarms/8/",
		"POST /api/v1/swarms/8/swarm/",
	}, api.calls)
}

func TestSwarmDispatchWithoutChanges(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t, swarms: newSwarmFixture()}
	c := newTestClient(t, api)

	swarm, err := vr.SwarmByID(ctx, c, 8)
	require.NoError(t, err)

	_, err = swarm.Dispatch(ctx, nil)
	require.NoError(t, err)
	assert.NotContains(t, api.calls, "PATCH /api/v1/swarms/8/")
}

func TestBuildAssemble(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t, swarms: newSwarmFixture()}
	c := newTestClient(t, api)

	swarm, err := vr.SwarmByID(ctx, c, 8)
	require.NoError(t, err)

	build := swarm.NewBuild()
	assert.False(t, build.Created())

	require.NoError(t, build.Assemble(ctx))
	assert.True(t, build.Created())
	assert.Equal(t, "/api/v1/builds/5/", build.URI())
	assert.Contains(t, api.calls, "POST /api/v1/builds/5/build/")
}

func TestReleaseDeployAndParsedConfig(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	var deployBody map[string]interface{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/releases/3/":
			writeJSON(t, w, map[string]interface{}{
				"id":           3,
				"resource_uri": "/api/v1/releases/3/",
				"config_yaml":  "DATABASE_URL: postgres://db/example\nWORKERS: 4\n",
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/releases/3/deploy/":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&deployBody))
			w.WriteHeader(http.StatusAccepted)
		default:
			http.NotFound(w, r)
		}
	}))

	release, err := vr.ReleaseByID(ctx, c, 3)
	require.NoError(t, err)

	config, err := release.ParsedConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/example", config["DATABASE_URL"])
	assert.Equal(t, float64(4), config["WORKERS"])

	require.NoError(t, release.Deploy(ctx, "node8.example.com", 5003, "web", "prod"))
	assert.Equal(t, map[string]interface{}{
		"host":        "node8.example.com",
		"port":        float64(5003),
		"proc":        "web",
		"config_name": "prod",
	}, deployBody)
}

func TestIngredientByName(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secrets", r.URL.Query().Get("name"))
		writeJSON(t, w, map[string]interface{}{
			"objects": []interface{}{
				map[string]interface{}{
					"id":           12,
					"resource_uri": "/api/v1/ingredients/12/",
					"name":         "secrets",
				},
			},
		})
	}))

	ingredient, err := vr.IngredientByName(ctx, c, "secrets")
	require.NoError(t, err)
	assert.Equal(t, "secrets (12)", ingredient.FriendlyName())
}

func TestResourceSaveCreatesWhenNew(t *testing.T) {
	t.Parallel()
	ctx := dlog.NewTestContext(t, true)

	api := &fakeAPI{t: t}
	c := newTestClient(t, api)

	build := vr.NewBuild(c, map[string]interface{}{
		"app": "/api/v1/apps/1/",
		"tag": "v2.4.1",
	})
	require.NoError(t, build.Save(ctx))
	assert.Equal(t, "/api/v1/builds/5/", build.URI())
}

func TestFilter(t *testing.T) {
	t.Parallel()

	f, err := vr.NewFilter("node-example-.*", "staging")
	require.NoError(t, err)

	assert.True(t, f.Match("node-example-prod-web"))
	assert.False(t, f.Match("node-example-Staging-web"))
	assert.False(t, f.Match("other-prod-web"))
	// Anchored at the start only.
	assert.False(t, f.Match("my-node-example-prod-web"))

	_, err = vr.NewFilter("(")
	assert.Error(t, err)
}
