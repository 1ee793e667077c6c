// Package orchestrator ties the duplex channel to the task machinery: one
// websocket connection shared by an operator UI on one side and browser
// agent tasks on the other. Frames from the UI are dispatched to tasks;
// task progress, results, and intervention requests flow back out.
package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrNoConnection is returned by Send when no operator UI is attached.
var ErrNoConnection = errors.New("no active connection")

// wireConn is the write surface the handle needs from a websocket
// connection. *websocket.Conn satisfies it.
type wireConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ConnHandle holds the single active connection under last-writer-wins
// semantics: a newly attached UI displaces the previous one, and a
// departing connection only clears the slot if it is still the current
// occupant. Writes are serialized so concurrent tasks cannot interleave
// frames.
type ConnHandle struct {
	mu   sync.Mutex
	conn wireConn
}

// NewConnHandle returns an empty handle.
func NewConnHandle() *ConnHandle {
	return &ConnHandle{}
}

// Set installs c as the current connection, displacing any previous one.
// The displaced connection is not closed; its read loop notices on its own.
func (h *ConnHandle) Set(c wireConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = c
}

// ClearIf removes c from the handle only if it is still current. A stale
// connection departing after being displaced must not evict its successor.
func (h *ConnHandle) ClearIf(c wireConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == c {
		h.conn = nil
	}
}

// Attached reports whether a connection is currently installed.
func (h *ConnHandle) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// Send marshals v and writes it as one text frame to the current
// connection. Returns ErrNoConnection when the slot is empty.
func (h *ConnHandle) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return ErrNoConnection
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close closes the current connection, if any, and clears the slot.
func (h *ConnHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}
