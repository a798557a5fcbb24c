// Package journal defines the contract for the operator-facing
// spreadsheet collaborators: the SGID changelog and the basemap-status
// workbook. Both are maintained outside this repository; only the
// narrow contract the orchestrator calls is specified here.
package journal

import (
	"context"
	"time"
)

// Journal records build completion in the operator's spreadsheets.
type Journal interface {
	// AppendChangelogRow appends one row to the SGID changelog
	// spreadsheet describing a completed basemap build.
	AppendChangelogRow(ctx context.Context, basemap string, completedAt time.Time) error

	// UpdateLastUpdated sets the "last updated" cell for basemap in the
	// basemap-status spreadsheet.
	UpdateLastUpdated(ctx context.Context, basemap string, updatedAt time.Time) error
}

// Noop is a stand-in Journal for configurations with no spreadsheet
// workbook wired up.
type Noop struct{}

func (Noop) AppendChangelogRow(ctx context.Context, basemap string, completedAt time.Time) error {
	return nil
}

func (Noop) UpdateLastUpdated(ctx context.Context, basemap string, updatedAt time.Time) error {
	return nil
}
