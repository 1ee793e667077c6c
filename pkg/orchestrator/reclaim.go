package orchestrator

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
)

// ErrPortBindExhausted is returned when the listen address cannot be bound
// even after reclaiming the port. Startup treats it as fatal.
var ErrPortBindExhausted = errors.New("could not bind listen address")

// execCommand is swapped out by tests so reclamation can be exercised
// without killing real processes.
var execCommand = exec.Command

const probeTimeout = 500 * time.Millisecond

// ReclaimPort frees addr if a previous instance still holds it. It asks
// nicely first: an end_connection frame over the existing socket lets the
// old process shut down cleanly. Only if the port is still occupied after
// the grace period does it kill the listeners outright.
func ReclaimPort(addr string, grace time.Duration, log *logging.Logger) {
	if !portInUse(addr) {
		return
	}
	log.Infof("port %s in use, attempting graceful takeover", addr)

	if sendEndConnection(addr) {
		time.Sleep(grace)
		if !portInUse(addr) {
			log.Infof("previous instance on %s exited cleanly", addr)
			return
		}
	}

	log.Warnf("previous instance on %s did not exit, killing listeners", addr)
	killListeners(addr, log)
}

// portInUse probes addr with a short TCP dial.
func portInUse(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// sendEndConnection dials the old instance's channel and asks it to stop.
func sendEndConnection(addr string) bool {
	dialer := websocket.Dialer{HandshakeTimeout: probeTimeout}
	conn, _, err := dialer.Dial("ws://"+addr+"/", nil)
	if err != nil {
		return false
	}
	defer conn.Close()

	msg := []byte(`{"type": "end_connection"}`)
	return conn.WriteMessage(websocket.TextMessage, msg) == nil
}

// killListeners terminates whatever still holds the port.
func killListeners(addr string, log *logging.Logger) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Errorf("cannot parse listen address %s: %v", addr, err)
		return
	}

	out, err := execCommand("lsof", "-ti", ":"+port).Output()
	if err != nil {
		// lsof exits nonzero when nothing matches; the port may have
		// freed up between the probe and now.
		log.Debugf("lsof found no listeners on port %s: %v", port, err)
		return
	}

	for _, pid := range strings.Fields(string(out)) {
		log.Warnf("killing pid %s holding port %s", pid, port)
		if err := execCommand("kill", "-9", pid).Run(); err != nil {
			log.Errorf("failed to kill pid %s: %v", pid, err)
		}
	}
}

// BindWithRetry attempts to listen on addr, retrying with backoff while
// the kernel releases the reclaimed port.
func BindWithRetry(addr string, attempts int, backoff time.Duration) (net.Listener, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
		}
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrPortBindExhausted, addr, attempts, lastErr)
}
