package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWire struct {
	writes int
	closed bool
	err    error
}

func (c *countingWire) WriteMessage(int, []byte) error {
	if c.err != nil {
		return c.err
	}
	c.writes++
	return nil
}

func (c *countingWire) Close() error {
	c.closed = true
	return nil
}

func TestConnHandleSendWithoutConnection(t *testing.T) {
	h := NewConnHandle()
	err := h.Send(map[string]string{"type": "x"})
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.False(t, h.Attached())
}

func TestConnHandleLastWriterWins(t *testing.T) {
	h := NewConnHandle()
	first := &countingWire{}
	second := &countingWire{}

	h.Set(first)
	h.Set(second)
	require.NoError(t, h.Send(map[string]string{"type": "x"}))

	assert.Zero(t, first.writes)
	assert.Equal(t, 1, second.writes)
	// The displaced connection is not closed by the handle.
	assert.False(t, first.closed)
}

func TestConnHandleClearIfStale(t *testing.T) {
	h := NewConnHandle()
	first := &countingWire{}
	second := &countingWire{}

	h.Set(first)
	h.Set(second)

	// The stale connection's departure must not evict its successor.
	h.ClearIf(first)
	assert.True(t, h.Attached())

	h.ClearIf(second)
	assert.False(t, h.Attached())
}

func TestConnHandleSendSurfacesWriteError(t *testing.T) {
	h := NewConnHandle()
	broken := &countingWire{err: errors.New("pipe closed")}
	h.Set(broken)

	err := h.Send(map[string]string{"type": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe closed")
}

func TestConnHandleClose(t *testing.T) {
	h := NewConnHandle()
	c := &countingWire{}
	h.Set(c)

	require.NoError(t, h.Close())
	assert.True(t, c.closed)
	assert.False(t, h.Attached())

	// Idempotent on an empty handle.
	assert.NoError(t, h.Close())
}
