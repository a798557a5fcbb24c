// Package notifier delivers progress and milestone messages through a
// pluggable channel. Delivery is always best-effort: a failure is
// logged but never propagated to the pipeline.
package notifier

import "context"

// Notifier is the contract the orchestrator and uploader send milestone
// messages through.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Multi fans a notification out to every configured channel without
// short-circuiting on a failure, and returns the first failure seen.
type Multi struct {
	Channels []Notifier
}

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var firstErr error
	for _, ch := range m.Channels {
		if err := ch.Notify(ctx, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
