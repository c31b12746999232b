package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds process-level settings that are read from the environment
// rather than from the config file.
type Env struct {
	Environment string `env:"JOBFRONT_ENV" envDefault:"production"`
	ConfigPath  string `env:"JOBFRONT_CONFIG"`
	Addr        string `env:"JOBFRONT_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadEnv parses the process environment
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parsing environment: %w", err)
	}
	return e, nil
}

// IsDevelopment reports whether the process runs in development mode
func (e Env) IsDevelopment() bool {
	return e.Environment == "development" || e.Environment == "dev"
}

// Override applies environment overrides on top of a loaded config
func (e Env) Override(cfg *Config) {
	if e.Addr != "" {
		cfg.Server.Addr = e.Addr
	}
}
