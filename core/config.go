package core

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ScheduleConfig bounds the school day; intervals outside it are rejected.
	ScheduleConfig struct {
		DayStart string // "HH:MM"
		DayEnd   string // "HH:MM"
	}

	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		RollbarToken     string
		SendgridAPIKey   string
		DefaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Schedule ScheduleConfig
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads configuration from defaults, an optional config/.env.<env>
// file and environment variables prefixed with the current ENV.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Ratiba")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.shutdownTimeout", 20*time.Second)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.name", "ratiba")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("schedule.dayStart", "00:00")
	v.SetDefault("schedule.dayEnd", "23:59")

	env := os.Getenv("ENV")
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:      env,
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		AppName:  v.GetString("appName"),
		Build:    v.GetString("build"),

		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),

		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Schedule: ScheduleConfig{
			DayStart: v.GetString("schedule.dayStart"),
			DayEnd:   v.GetString("schedule.dayEnd"),
		},
	}
	return conf, nil
}

// Getwd returns the current working directory; an empty string is returned on
// failure so path joins degrade to relative lookups.
func Getwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}
