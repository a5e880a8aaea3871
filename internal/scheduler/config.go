package scheduler

import (
	"fmt"
	"time"

	"github.com/smallbiznis/energyscope/internal/config"
)

// Mode selects how the scheduler runs inside the application process.
type Mode string

const (
	// ModeOff leaves the calendar to the setup file and explicit period creation.
	ModeOff Mode = "off"
	// ModeOnce runs every job a single time while the application starts.
	ModeOnce Mode = "once"
	// ModeLoop runs every job at start and then every RunInterval.
	ModeLoop Mode = "loop"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "", ModeOff:
		return ModeOff, nil
	case ModeOnce, ModeLoop:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("scheduler: unknown mode %q", raw)
	}
}

// Config controls the scheduler loop.
type Config struct {
	Mode        Mode
	RunInterval time.Duration
	JobTimeout  time.Duration
	// LookAhead generates next year's periods once the run time is this
	// close to the end of the year.
	LookAhead time.Duration
}

func DefaultConfig() Config {
	return Config{
		Mode:        ModeOff,
		RunInterval: time.Hour,
		JobTimeout:  5 * time.Minute,
		LookAhead:   31 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LookAhead <= 0 {
		c.LookAhead = defaults.LookAhead
	}
	return c
}

func ProvideConfig(app config.Config) (Config, error) {
	mode, err := ParseMode(app.SchedulerMode)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	cfg.Mode = mode
	return cfg, nil
}
