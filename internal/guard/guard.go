// Package guard distinguishes bot-originated sends from operator sends.
package guard

import "sync"

// Counter tracks in-flight programmatic sends. Handlers reacting to the
// operator's own outgoing messages check Active before treating a send as a
// manual intervention; a non-zero counter marks the event as an echo of a
// bot-originated send.
type Counter struct {
	mu sync.Mutex
	n  int
}

// Begin marks the start of a programmatic send. Pair with a deferred End.
func (c *Counter) Begin() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

// End marks the completion of a programmatic send. The counter never goes
// negative.
func (c *Counter) End() {
	c.mu.Lock()
	if c.n > 0 {
		c.n--
	}
	c.mu.Unlock()
}

// Active reports whether any programmatic send is in flight.
func (c *Counter) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n > 0
}
