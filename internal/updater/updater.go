// Package updater defines the contract for the external data-refresh
// collaborator: a geospatial ETL step that rewrites local feature
// classes ahead of a production cache build. Its implementation is out
// of scope for the cache/upload pipeline; only the contract is specified.
package updater

import "context"

// Options mirror the `update-data` CLI flags.
type Options struct {
	StaticOnly   bool
	SGIDOnly     bool
	ExternalOnly bool
	DontWait     bool
}

// Updater refreshes the source data a basemap renders from.
type Updater interface {
	// Update runs the data refresh, optionally waiting until a
	// configured nightly hour first (unless opts.DontWait is set).
	Update(ctx context.Context, opts Options) error
}

// NoopUpdater is a stand-in Updater for configurations where the data
// refresh step is managed entirely outside honeycomb.
type NoopUpdater struct{}

func (NoopUpdater) Update(ctx context.Context, opts Options) error { return nil }
