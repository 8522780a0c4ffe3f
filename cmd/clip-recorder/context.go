package main

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/clip-recorder/internal/audio"
	"github.com/petems/clip-recorder/internal/config"
	"github.com/petems/clip-recorder/internal/logging"
	"github.com/petems/clip-recorder/internal/permissions"
)

type commandContext struct {
	configFlag   *string
	backendFlag  *string
	deviceFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, backendFlag, deviceFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		backendFlag:  backendFlag,
		deviceFlag:   deviceFlag,
		logLevelFlag: logLevelFlag,
	}
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// ensureConfig loads the config once, applying command-line overrides on top
// of the file and environment.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var cfg *config.Config
		var err error
		if path := flagValue(c.configFlag); path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			c.configErr = err
			return
		}

		if v := flagValue(c.backendFlag); v != "" {
			cfg.Audio.Backend = v
		}
		if v := flagValue(c.deviceFlag); v != "" {
			cfg.Audio.DeviceID = v
		}
		if v := flagValue(c.logLevelFlag); v != "" {
			cfg.LogLevel = v
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// update stores one settings change in the file the config was loaded from.
// Flag and environment overrides are not written back.
func (c *commandContext) update(change func(*config.Config)) error {
	path := flagValue(c.configFlag)
	if path == "" {
		path = config.Path()
	}
	return config.Update(path, change)
}

func (c *commandContext) logger() zerolog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.New()
	}
	return logging.NewWithLevel(cfg.LogLevel)
}

// backend opens the configured capture backend behind the microphone
// permission check.
func (c *commandContext) backend() (audio.Backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	b, err := audio.New(cfg.Audio)
	if err != nil {
		return nil, err
	}
	return audio.WithAccessCheck(b, permissions.EnsureMicrophone), nil
}
