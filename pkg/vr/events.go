package vr

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/datawire/dlib/dlog"
	"github.com/r3labs/sse/v2"
)

// Event is one message off the deployment's event stream.
type Event struct {
	// Name is the SSE event name, if the server set one.
	Name string
	// Data is the decoded event document.
	Data map[string]interface{}
}

// Events subscribes to the deployment's server-sent event stream and
// calls handler for each event until ctx is done or the stream fails.
func (c *Client) Events(ctx context.Context, handler func(Event)) error {
	if err := c.fillDefaults(ctx); err != nil {
		return err
	}

	stream := sse.NewClient(c.BuildURL("api/streams/events/"))
	stream.Connection = c.HTTPClient
	stream.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString(
		[]byte(c.Credential.Username+":"+c.Credential.Password))

	return stream.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			dlog.Warnf(ctx, "Skipping undecodable event: %v", err)
			return
		}
		handler(Event{Name: string(msg.Event), Data: doc})
	})
}
