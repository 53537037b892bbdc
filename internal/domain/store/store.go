// Package store holds contracts shared by the entity repositories. The
// backing document store provides per-document CRUD, equality-filter
// queries, change subscriptions, and an all-or-nothing multi-document
// commit; repositories express those capabilities per entity.
package store

import "errors"

// ErrUnavailable marks a read or write that failed because the backing
// store could not be reached. Callers surface it once and abort; nothing is
// retried automatically.
var ErrUnavailable = errors.New("document store unavailable")

// Snapshot is one delivery on a watch channel. Watches are level-triggered:
// every delivery carries the full current value (or Exists=false after a
// delete) and replaces whatever the consumer held before. No deltas.
type Snapshot[T any] struct {
	Value  T
	Exists bool
}
