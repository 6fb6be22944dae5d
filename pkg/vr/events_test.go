package vr_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datawire/dlib/dlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yougov/vr-common/pkg/vr"
)

func TestEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(dlog.NewTestContext(t, true), 10*time.Second)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/streams/events/", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "hunter2", pass)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "no flusher", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, "event: proc\ndata: {\"host\": \"node8.example.com\", \"statename\": \"RUNNING\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"host\": \"node9.example.com\"}\n\n")
		flusher.Flush()

		// Hold the stream open until the client disconnects, so the
		// subscription does not reconnect mid-test.
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := &vr.Client{
		Base:       srv.URL + "/",
		Credential: &vr.Credential{Username: "alice", Password: "hunter2"},
	}

	received := make(chan vr.Event, 4)
	err := c.Events(ctx, func(ev vr.Event) {
		received <- ev
		if len(received) == 2 {
			cancel()
		}
	})
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	require.Len(t, received, 2)
	first := <-received
	assert.Equal(t, "proc", first.Name)
	assert.Equal(t, "node8.example.com", first.Data["host"])
	second := <-received
	assert.Equal(t, "node9.example.com", second.Data["host"])
}
