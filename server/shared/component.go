// Package shared holds the contracts the top-level server uses to manage its
// front ends.
package shared

import "context"

// Component is a front end the server starts and stops as a unit.
type Component interface {
	// GetType names the component in logs, e.g. "sigma" or "admin".
	GetType() string

	// Shutdown stops accepting work and waits for in-flight work, giving up
	// when ctx is done.
	Shutdown(ctx context.Context) error
}

// ShutdownAll shuts components down in order under one deadline and returns
// the types of those that failed, keyed to their error.
func ShutdownAll(ctx context.Context, components ...Component) map[string]error {
	failed := map[string]error{}
	for _, c := range components {
		if err := c.Shutdown(ctx); err != nil {
			failed[c.GetType()] = err
		}
	}
	return failed
}
