// Package state persists the bot's resumption cursor and the bounded set of
// status ids it has already acted on. Both are written before any remote side
// effect is attempted, so a crash skips an event instead of replying twice.
package state

// Store is the durable dedup record consulted by the event loop.
//
// IsProcessed answers by exact id membership only; range heuristics would
// risk treating a brand-new mention as already handled.
type Store interface {
	IsProcessed(statusID int64) bool
	MarkProcessed(statusID int64) error
	Cursor() int64
	AdvanceCursor(id int64) error
	Close() error
}
