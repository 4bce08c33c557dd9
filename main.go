// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ledviz/cmd"
	"ledviz/internal/app"
	"ledviz/internal/audio"
	"ledviz/internal/config"
	"ledviz/internal/log"
	"ledviz/internal/tui"
	"ledviz/pkg/build"
)

// main is the entry point for the visualizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Build the producer, pipeline and sinks
//
// 2. Concurrent Phase (Hot Path):
//   - Producer fills the sample queue
//   - Transformer turns samples into frames
//   - Consumer hands frames to the sinks
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:], os.Stdout)
	if errors.Is(err, cmd.ErrHandled) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	closeLog := configureLogging(cfg)
	defer closeLog()

	// Handle one-off commands (e.g., device listing) that don't require
	// the pipeline to be running
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			log.Fatal(err)
		}
		return
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := a.Run(ctx)
	stop()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if err := a.Close(); err != nil {
		log.Errorf("Error during shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}

// configureLogging applies the configured level. The live meter owns the
// terminal, so while it runs log output goes to ledviz.log instead.
func configureLogging(cfg *config.Config) func() {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = log.LevelInfo
	}
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)

	if !cfg.Output.Meter || cfg.Command != "" {
		return func() {}
	}
	f, err := os.OpenFile("ledviz.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warnf("Cannot open ledviz.log, logging disabled while the meter runs: %v", err)
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}
}

// executeCommand handles one-off commands that don't require the pipeline
// to be running, such as listing available audio devices.
func executeCommand(command string) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	switch command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandDevices:
		sel, err := tui.BrowseDevices()
		if err != nil {
			return err
		}
		if sel == nil {
			return nil
		}
		fmt.Printf("# %s\naudio:\n  input_device: %d\n  sample_rate: %.0f\n",
			sel.DeviceName, sel.DeviceID, sel.SampleRate)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
