// Package main runs the browser agent orchestrator: a websocket channel on
// localhost through which an operator UI starts, watches, and cancels
// browser automation tasks, and through which running tasks ask a human to
// step in.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/comptergeeks/bill-browser-use2/pkg/config"
	"github.com/comptergeeks/bill-browser-use2/pkg/llm/openai"
	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
	"github.com/comptergeeks/bill-browser-use2/pkg/orchestrator"
)

const version = "0.1.0"

func main() {
	var (
		addr        = flag.String("addr", "", "listen address (overrides config)")
		cdpURL      = flag.String("cdp-url", "", "browser DevTools endpoint (overrides config)")
		model       = flag.String("model", "", "chat model (overrides config)")
		configFile  = flag.String("config", "", "path to configuration file (YAML)")
		restart     = flag.Bool("restart", false, "evict a previous instance from the listen port before binding")
		showVersion = flag.Bool("version", false, "show version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Browser agent orchestrator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: orchestrator [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("orchestrator v%s\n", version)
		return
	}

	if err := run(*configFile, *addr, *cdpURL, *model, *restart); err != nil {
		log.Printf("orchestrator failed: %v", err)
		os.Exit(1)
	}
}

func run(configFile, addr, cdpURL, model string, restart bool) error {
	path := configFile
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if cdpURL != "" {
		cfg.CDPURL = cdpURL
	}
	if model != "" {
		cfg.Model = model
	}

	logger, err := logging.NewLogger("orchestrator")
	if err != nil {
		logger.Warnf("logger init failed, using stderr fallback: %v", err)
	}
	defer logger.Close()
	logger.Infof("starting orchestrator v%s (session %s)", version, logger.SessionID())

	provider, err := openai.NewProvider(cfg.OpenAIAPIKey, openai.WithModel(cfg.Model))
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}

	orch := orchestrator.New(cfg, orchestrator.NewAgentTaskFactory(cfg, provider), logger)
	srv := orchestrator.NewServer(cfg, orch, logger)
	srv.ReclaimOnStart = restart

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Infof("received %s, shutting down", sig)
		orch.RequestShutdown()
	}()

	return srv.Run()
}
