package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelCoordinatorPerTab(t *testing.T) {
	c := NewCancelCoordinator()
	assert.False(t, c.Cancelled("a"))

	c.Request("a")
	assert.True(t, c.Cancelled("a"))
	assert.False(t, c.Cancelled("b"))

	c.Clear("a")
	assert.False(t, c.Cancelled("a"))
}

func TestCancelCoordinatorGlobal(t *testing.T) {
	c := NewCancelCoordinator()
	c.RequestAll()

	// Covers tabs that were never individually requested, including ones
	// admitted after the request.
	assert.True(t, c.Cancelled("a"))
	assert.True(t, c.Cancelled("brand-new"))

	// Per-tab clears do not lift the global flag.
	c.Clear("a")
	assert.True(t, c.Cancelled("a"))

	c.ClearAll()
	assert.False(t, c.Cancelled("a"))
	assert.False(t, c.Cancelled("brand-new"))
}
