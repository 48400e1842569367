package pricing

import "sync/atomic"

// Generation issues tickets for asynchronous lookups. Only the most recently issued ticket
// is live; results carrying an older ticket belong to an abandoned selection.
type Generation struct {
	current atomic.Uint64
}

// Ticket identifies the generation a lookup was issued for.
type Ticket uint64

// Next invalidates all outstanding tickets and returns a new live one.
func (g *Generation) Next() Ticket {
	return Ticket(g.current.Add(1))
}

// Current returns the live ticket.
func (g *Generation) Current() Ticket {
	return Ticket(g.current.Load())
}

// Restore sets the live ticket, e.g. after loading persisted state.
func (g *Generation) Restore(t Ticket) {
	g.current.Store(uint64(t))
}

// IsCurrent reports whether t is still the live ticket.
func (g *Generation) IsCurrent(t Ticket) bool {
	return g.current.Load() == uint64(t)
}

// Apply runs fn only when t is still live and reports whether it ran.
func (g *Generation) Apply(t Ticket, fn func()) bool {
	if !g.IsCurrent(t) {
		return false
	}
	fn()
	return true
}

// Stamped pairs a lookup result with the ticket it was issued under.
type Stamped[T any] struct {
	Ticket Ticket
	Value  T
	Err    error
}
