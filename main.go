// ABOUTME: Entry point for the dual display clock
// ABOUTME: Loads configuration, sets up logging and the TUI, runs the clock
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/dualclock/internal/app"
	"github.com/harperreed/dualclock/internal/config"
	"github.com/harperreed/dualclock/internal/ui"
	"github.com/harperreed/dualclock/internal/version"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("Invalid configuration: %v", err)
	}

	useTUI := !cfg.NoTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Booting %s", version.String())
	if cfg.File != "" {
		log.Printf("Configuration loaded from %s", cfg.File)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tui *ui.TUI
	opts := app.Options{}
	if useTUI {
		tui = ui.NewTUI()
		opts.OnStatus = tui.Update
	}

	clock := app.New(cfg, opts)

	done := make(chan error, 1)
	go func() {
		done <- clock.Run(ctx)
	}()

	var tuiQuit <-chan struct{}
	if tui != nil {
		tuiQuit = tui.QuitChan()
		go func() {
			if err := tui.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	finished := false
	select {
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-tuiQuit:
		log.Printf("Received quit signal from TUI")
	case runErr = <-done:
		finished = true
	}

	cancel()
	if !finished {
		runErr = <-done
	}
	// The clock has stopped sending status, so the TUI can close.
	if tui != nil {
		tui.Stop()
	}

	if runErr != nil {
		log.Fatalf("Clock failed: %v", runErr)
	}
	log.Printf("Clock stopped")
}
