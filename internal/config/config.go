package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	CorsConfig
	UpstoxConfig
	BackendConfig
	TimingConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetOrigin() string
	GetLogLevel() string
	GetLogFile() string
	GetOpenerMode() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type UpstoxConfig interface {
	GetUpstoxClientID() string
	GetUpstoxClientSecret() string
	GetUpstoxRedirectURI() string
	GetUpstoxBaseURL() string
}

type BackendConfig interface {
	GetAPIURL() string
	GetAPITimeout() time.Duration
}

type TimingConfig interface {
	GetQuoteInterval() time.Duration
	GetConnectPollInterval() time.Duration
	GetConnectTimeout() time.Duration
	GetPopupCloseDelay() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Upstox
	Backend
	Timing
}

// New loads an optional .env file and the optional YAML file named by
// FINGREAT_CONFIG. Environment variables always win over the file.
func New() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	file, err := LoadFile(GetEnv(configFileVar, ""))
	if err != nil {
		log.Warn().Err(err).Msg("config file ignored")
		file = &FileValues{}
	}
	return FromFile(file)
}

// FromFile builds a Config on top of already loaded file values.
func FromFile(file *FileValues) Config {
	if file == nil {
		file = &FileValues{}
	}
	return mainConfig{
		EnvVars: EnvVars{file: file},
		Cors:    Cors{file: file},
		Upstox:  Upstox{file: file},
		Backend: Backend{file: file},
		Timing:  Timing{file: file},
	}
}
