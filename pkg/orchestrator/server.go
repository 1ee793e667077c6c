package orchestrator

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/comptergeeks/bill-browser-use2/pkg/config"
	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
)

// Server owns the listener and hands every accepted websocket to the
// orchestrator's connection handle. It serves until the UI asks for a
// shutdown; a restart request drops the listener, reclaims the port, and
// binds again without touching running tasks.
type Server struct {
	cfg  *config.Config
	orch *Orchestrator
	log  *logging.Logger

	// ReclaimOnStart evicts a previous instance from the listen port
	// before the first bind. A UI-requested restart always reclaims,
	// since the port was ours.
	ReclaimOnStart bool

	upgrader websocket.Upgrader

	mu sync.Mutex
	ln net.Listener
}

// NewServer creates a server for the orchestrator.
func NewServer(cfg *config.Config, orch *Orchestrator, log *logging.Logger) *Server {
	return &Server{
		cfg:  cfg,
		orch: orch,
		log:  log,
		upgrader: websocket.Upgrader{
			// The channel is loopback-only; the UI is an extension or
			// local app, not a browsing-context origin we can pin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves the duplex channel until a shutdown is requested. Each pass
// optionally reclaims the configured port, binds with retry, and serves
// until the orchestrator signals.
func (s *Server) Run() error {
	reclaim := s.ReclaimOnStart
	for {
		if reclaim {
			ReclaimPort(s.cfg.ListenAddr, s.cfg.GracePeriod, s.log)
		}
		reclaim = true

		ln, err := BindWithRetry(s.cfg.ListenAddr, s.cfg.BindAttempts, s.cfg.BindBackoff)
		if err != nil {
			return err
		}
		s.setListener(ln)
		s.log.Infof("listening on %s", ln.Addr())

		sig := s.serveUntilSignal(ln)
		switch sig {
		case ControlRestart:
			s.log.Infof("restarting listener")
			continue
		default:
			s.log.Infof("shutting down")
			s.orch.Shutdown()
			return nil
		}
	}
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) setListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ln = ln
}

// serveUntilSignal runs the HTTP server on ln until the orchestrator
// emits a control signal, then tears the listener down and reports it.
func (s *Server) serveUntilSignal(ln net.Listener) ControlSignal {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleChannel)
	srv := &http.Server{Handler: mux}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("serve error: %v", err)
		}
	}()

	sig := <-s.orch.Control()
	srv.Close()
	<-done
	s.setListener(nil)
	return sig
}

// handleChannel upgrades one connection and pumps its frames into the
// dispatcher. The newest connection always wins the handle; a displaced
// connection keeps reading until its peer goes away, but its frames still
// dispatch and its departure cannot evict the successor.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	s.log.Infof("operator connected from %s", r.RemoteAddr)
	s.orch.Conn().Set(conn)
	defer func() {
		s.orch.Conn().ClearIf(conn)
		conn.Close()
		s.log.Infof("operator disconnected (%s)", r.RemoteAddr)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.orch.Dispatch(raw)
	}
}
