// Package config turns viper settings into typed, validated configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"jammertime/internal/logger"
	"jammertime/internal/models"
)

const EnvPrefix = "JAMMERTIME"

type Auth struct {
	SigningKey string
	TokenTTL   time.Duration
}

type Log struct {
	Level  string
	Format string
}

type App struct {
	Port     string
	DBPath   string
	Log      Log
	Auth     Auth
	Calc     models.CalcConfig
	Trailing time.Duration
	TimeZone string
}

// SetDefaults registers every key so that env overrides work without a
// config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "jammertime.db")
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.format", logger.ConsoleFormat)
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("calc.error_state", models.DefaultErrorState)
	v.SetDefault("calc.running_states", models.DefaultRunningStates)
	v.SetDefault("calc.max_jam_duration", models.DefaultMaxJamDuration)
	v.SetDefault("calc.idle_threshold", models.DefaultIdleThreshold)
	v.SetDefault("calc.shift_start_grace", time.Duration(0))
	v.SetDefault("calc.break_end_grace", time.Duration(0))
	v.SetDefault("calc.trailing_duration", models.DefaultTrailing)
	v.SetDefault("calc.workers", models.DefaultWorkers)
	v.SetDefault("calc.location", "")
	v.SetDefault("calc.precedence", []string{})
}

// Load reads configs/config.yml (or file, when given) on top of defaults and
// JAMMERTIME_* environment variables. A missing default file is not an error.
func Load(v *viper.Viper, file string) (App, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return App{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (App, error) {
	precedence, err := models.ParsePrecedence(v.GetStringSlice("calc.precedence"))
	if err != nil {
		return App{}, err
	}
	// WithDefaults reads a zero threshold as unset; an explicit one is a mistake.
	if idle := v.GetDuration("calc.idle_threshold"); idle <= 0 {
		return App{}, fmt.Errorf("calc.idle_threshold must be positive, got %s", idle)
	}
	app := App{
		Port:   v.GetString("port"),
		DBPath: v.GetString("db.path"),
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Auth: Auth{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Calc: models.CalcConfig{
			ErrorState:      v.GetString("calc.error_state"),
			RunningStates:   v.GetStringSlice("calc.running_states"),
			MaxJamDuration:  v.GetDuration("calc.max_jam_duration"),
			IdleThreshold:   v.GetDuration("calc.idle_threshold"),
			ShiftStartGrace: v.GetDuration("calc.shift_start_grace"),
			BreakEndGrace:   v.GetDuration("calc.break_end_grace"),
			Precedence:      precedence,
			Workers:         v.GetInt("calc.workers"),
		}.WithDefaults(),
		Trailing: v.GetDuration("calc.trailing_duration"),
		TimeZone: v.GetString("calc.location"),
	}
	if err := app.Validate(); err != nil {
		return App{}, err
	}
	return app, nil
}

func (a App) Validate() error {
	var errs []error
	if err := a.Calc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if a.Trailing < 0 {
		errs = append(errs, fmt.Errorf("calc.trailing_duration is negative: %s", a.Trailing))
	}
	if a.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if _, err := a.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location is the zone applied to CSV timestamps without an offset.
func (a App) Location() (*time.Location, error) {
	return models.Schedule{TimeZone: a.TimeZone}.Location()
}
