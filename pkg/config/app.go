package config

import (
	"fmt"
	"time"
)

// App holds process-wide settings that do not belong to a single component.
type App struct {
	Name        string   `env:"APP_NAME" envDefault:"invoicer"`
	Env         string   `env:"APP_ENV" envDefault:"development"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	Timezone    string   `env:"APP_TIMEZONE" envDefault:"Asia/Kolkata"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// OverdueSweepSchedule is a cron spec for the background overdue sweep. Empty disables it.
	OverdueSweepSchedule string `env:"OVERDUE_SWEEP_SCHEDULE" envDefault:"0 2 * * *"`
}

// Location resolves Timezone. Daily quotas reset at midnight in this location.
func (a App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", a.Timezone, err)
	}
	return loc, nil
}
