// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"shaker/cmd"
	"shaker/internal/audio"
	"shaker/internal/config"
	"shaker/internal/engine"
	applog "shaker/internal/log"
	"shaker/internal/source"
	"shaker/internal/tui"
	"shaker/pkg/build"
)

// main is the entry point for the shake tracker.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and the config file
//   - Execute one-off commands if requested
//   - Build the control mode, sample source and transports
//
// 2. Concurrent Phase (Hot Path):
//   - Run the engine loop (samples in, frames out)
//   - Publish UDP packets and show the monitor if enabled
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Save the recording, close source and transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags.
	if err := build.Initialize(); err != nil {
		applog.Debugf("build info incomplete: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if errors.Is(err, cmd.ErrNoRun) {
		return
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
	closeLog := configureLogging(cfg)
	defer closeLog()

	// Handle one-off commands (e.g., device listing) that don't require
	// the engine to be running
	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

const monitorLogFile = "shaker.log"

// configureLogging sets the level and, while the monitor owns the terminal,
// sends log output to monitorLogFile.
func configureLogging(cfg *config.Config) func() {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		level = applog.LevelInfo
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)

	if !cfg.Monitor.Enabled || cfg.Command != "" {
		return func() {}
	}
	f, err := os.OpenFile(monitorLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		applog.Warnf("cannot open %s, logging to stderr: %v", monitorLogFile, err)
		return func() {}
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}
}

// run builds the pipeline from cfg and blocks until ctx is done, the source
// ends or the monitor quits.
func run(ctx context.Context, cfg *config.Config) (err error) {
	if kind, _ := source.ParseKind(cfg.Source.Kind); kind == source.KindAudio {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
	}

	mode, err := buildMode(cfg)
	if err != nil {
		return err
	}
	src, err := buildSource(cfg)
	if err != nil {
		return err
	}
	transports, err := buildTransports(cfg)
	if err != nil {
		return errors.Join(err, src.Close())
	}

	e, err := engine.NewEngine(cfg, mode, src, transports...)
	if err != nil {
		return err
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Deferred so it runs however the concurrent phase ends.
	defer func() {
		if cerr := e.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if path := e.RecordingPath(); path != "" {
			fmt.Printf("\nRecording saved to: %s\n", path)
		}
	}()

	// ==================== CONCURRENT PHASE (Hot Path) ====================
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Transport.UDPEnabled {
		out, err := startUDP(cfg, e)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	var (
		wg       sync.WaitGroup
		engErr   error
		frameDur = e.FrameInterval()
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		engErr = e.Run(ctx)
	}()

	if cfg.Monitor.Enabled {
		if merr := tui.RunMonitor(ctx, e, frameDur); merr != nil {
			applog.Errorf("monitor: %v", merr)
		}
		cancel()
	} else {
		fmt.Printf("Tracking %s samples in %s mode. Press Ctrl+C to stop.\n", cfg.Source.Kind, mode.Kind())
	}

	wg.Wait()
	return engErr
}

// executeCommand handles one-off commands that don't require the engine
// to be running, such as listing available audio devices.
func executeCommand(command string) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	switch command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandPickDevice:
		devices, err := audio.GetDevices()
		if err != nil {
			return err
		}
		id, ok, err := tui.PickDevice(devices)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("Selected device %d. Run with --source audio --device %d\n", id, id)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
