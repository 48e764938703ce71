// Package ui renders apiclient notifications and navigation for terminals.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Console writes toasts, the loading overlay and navigation to a writer.
// It implements apiclient.Notifier and apiclient.Navigator and is safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	loading int
	route   string
}

// NewConsole returns a Console writing to out, or os.Stderr when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

func (c *Console) Toast(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "! %s\n", message)
}

// ShowLoading prints title. Nested calls share one overlay; only the first prints.
func (c *Console) ShowLoading(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading++
	if c.loading == 1 {
		fmt.Fprintf(c.out, "%s\n", title)
	}
}

func (c *Console) HideLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading > 0 {
		c.loading--
	}
}

// Loading reports whether an overlay is currently shown.
func (c *Console) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// ReLaunch records route as the only screen and tells the user where to go next.
func (c *Console) ReLaunch(route string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.route = route
	_, err := fmt.Fprintf(c.out, "-> %s\n", route)
	return err
}

// Route returns the last route passed to ReLaunch.
func (c *Console) Route() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.route
}
