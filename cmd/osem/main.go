// Command osem runs the event classification and ingestion engine as a
// standalone process: load config, connect the reference IMAP adapter,
// and poll for mail until interrupted. It is a thin driver in the same
// spirit as the teacher's cmd/miau/main.go, minus the TUI: this engine
// is a library first, and this binary exists to prove out the wiring
// internal/engine assembles, not to be a mail client in its own right.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opik/osem/internal/config"
	"github.com/opik/osem/internal/engine"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg *config.Config
	var err error

	if config.ConfigExists() {
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
		log.Printf("wrote default config to %s; fill in mail_source and rerun", config.GetConfigFile())
		return nil
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	eng.Start()
	defer eng.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
	return nil
}
