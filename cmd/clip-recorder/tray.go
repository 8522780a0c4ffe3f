package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/app"
	"github.com/petems/clip-recorder/internal/audio"
	"github.com/petems/clip-recorder/internal/hotkey"
	"github.com/petems/clip-recorder/internal/output"
	"github.com/petems/clip-recorder/internal/permissions"
	"github.com/petems/clip-recorder/internal/tray"
)

// runTray is the menu bar mode: a global hotkey and the tray menu drive
// recordings, and each clip goes to the configured on_complete command.
func runTray(parent context.Context, cc *commandContext) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	log := cc.logger()

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize audio capture
	backend, err := cc.backend()
	if err != nil {
		return err
	}
	defer backend.Close()

	sinks := output.Multi{output.NewLog(log)}
	if len(cfg.Recording.OnComplete) > 0 {
		sinks = append(sinks, output.NewCommand(cfg.Recording.OnComplete, log))
	}

	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(log, Version, Commit)

	application := app.New(app.Config{
		Backend:       backend,
		Sink:          sinks,
		Config:        cfg,
		Logger:        log,
		StatusUpdater: trayUI,
		Persist:       cc.update,
	})
	trayUI.SetApp(application)
	trayUI.SetDisabled(!inputAvailable(backend, log))

	// Hotkeys are optional; the tray menu still works without them.
	if err := permissions.EnsureAccessibility(); err != nil {
		log.Warn().Err(err).Msg("Hotkey disabled")
	} else if hkManager, err := hotkey.New(); err != nil {
		if !errors.Is(err, hotkey.ErrUnsupported) {
			return err
		}
		log.Warn().Err(err).Msg("Hotkey disabled")
	} else {
		defer hkManager.Close()
		if err := hkManager.Register(cfg.PlatformHotkey(), application.OnHotkey); err != nil {
			log.Warn().Err(err).Str("hotkey", cfg.PlatformHotkey()).Msg("Failed to register hotkey")
		}
	}

	log.Info().Str("version", Version).Msg("Clip Recorder starting...")

	shutdown := func() {
		log.Info().Msg("Shutting down...")
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := application.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("Shutdown error")
		}
	}

	// Start tray UI - MUST run on main thread
	err = trayUI.Run(ctx, shutdown)
	if ctx.Err() != nil {
		shutdown()
	}
	return err
}

// inputAvailable reports whether the backend lists any capture device.
func inputAvailable(b audio.Backend, log zerolog.Logger) bool {
	devices, err := b.ListDevices()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list audio devices")
		return false
	}
	if len(devices) == 0 {
		log.Warn().Msg("No audio input devices found")
		return false
	}
	return true
}
