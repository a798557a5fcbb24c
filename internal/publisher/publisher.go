// Package publisher defines the contract for the vector tile-package
// publisher: the collaborator that ships vector-basemap tile packages
// for the `vector`/`vector-all` commands. Its implementation is out of
// scope for the cache/upload pipeline.
package publisher

import "context"

// Publisher publishes a vector basemap's tile package.
type Publisher interface {
	Publish(ctx context.Context, basemap string) error
}

// Noop is a stand-in Publisher for deployments with no vector basemaps.
type Noop struct{}

func (Noop) Publish(ctx context.Context, basemap string) error { return nil }
