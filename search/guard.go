package search

import "sync/atomic"

// Guard hands out increasing tickets. Only the most recently issued ticket
// is current, so a completion holding an older ticket knows it is stale.
type Guard struct {
	seq atomic.Uint64
}

// Next issues a new ticket, making every earlier ticket stale.
func (g *Guard) Next() uint64 {
	return g.seq.Add(1)
}

// Current reports whether ticket is the latest one issued.
func (g *Guard) Current(ticket uint64) bool {
	return g.seq.Load() == ticket
}
