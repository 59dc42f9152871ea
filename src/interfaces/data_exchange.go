package interfaces

import "context"

// -----------------------------------------------------------------------------
// INotifier pushes a broadcast payload towards the realtime hub, either
// in-process or over HTTP to a remote hub's push endpoint.
// -----------------------------------------------------------------------------

type INotifier interface {
	Notify(ctx context.Context, payload map[string]interface{}) error
}
