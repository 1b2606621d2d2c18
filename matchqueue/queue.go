// Package matchqueue implements the cross-instance FIFO of players waiting
// for an opponent. The authoritative implementation is Redis-backed so that
// multiple server instances share one queue; an in-memory implementation
// exists for tests and single-instance deployments.
package matchqueue

import "context"

// Queue is the external-store-backed matchmaking queue (spec component C4).
type Queue interface {
	// Enqueue appends playerID to the tail of the queue.
	Enqueue(ctx context.Context, playerID string) error
	// Remove deletes all occurrences of playerID from the queue.
	Remove(ctx context.Context, playerID string) error
	// PairPop atomically pops the two oldest entries. ok is false if fewer
	// than two entries were available, in which case any popped entry is
	// put back.
	PairPop(ctx context.Context) (a, b string, ok bool, err error)
	// Depth returns the current queue length.
	Depth(ctx context.Context) (int, error)
	// Ping checks reachability of the backing store, for Health.
	Ping(ctx context.Context) error
}
