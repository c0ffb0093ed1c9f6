// AngelaMos | 2026
// cleanup.go

package main

import "log/slog"

type closer struct {
	name string
	fn   func() error
}

// cleanupStack closes resources in reverse order of acquisition, so a
// failed startup step still releases everything opened before it.
type cleanupStack struct {
	closers []closer
}

func (c *cleanupStack) push(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

func (c *cleanupStack) run(logger *slog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			logger.Error(cl.name+" close error", "error", err)
		}
	}
	c.closers = nil
}
