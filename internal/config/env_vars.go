package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	folderEnvVar   = "FOLDER"
	baseURLVar     = "BASE_URL"
	logLevelVar    = "LOG_LEVEL"
	logFileVar     = "LOG_FILE"
	openerModeVar  = "OPENER"
	defaultBaseURL = "http://localhost:3000"
)

// Opener modes select how the Upstox popup is opened.
const (
	OpenerRelay  = "relay"  // ask connected browser tabs to window.open it
	OpenerSystem = "system" // launch the system browser
)

type EnvVars struct {
	file *FileValues
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := lookup(portEnvVar, e.file.Server.Port, "3000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return lookup(appNameVar, e.file.Server.AppName, "FinGReaT")
}

func (e EnvVars) GetDataFolder() string {
	return lookup(folderEnvVar, e.file.Server.DataFolder, "./data")
}

// GetBaseURL returns the public URL of this server (e.g., "http://localhost:3000")
// The page origin and the default Upstox redirect URI derive from it
func (e EnvVars) GetBaseURL() string {
	return lookup(baseURLVar, e.file.Server.BaseURL, defaultBaseURL)
}

// GetOrigin returns scheme://host[:port] of the base URL.
func (e EnvVars) GetOrigin() string {
	return OriginOf(e.GetBaseURL())
}

func (e EnvVars) GetLogLevel() string {
	return lookup(logLevelVar, e.file.Logging.Level, "info")
}

func (e EnvVars) GetLogFile() string {
	return lookup(logFileVar, e.file.Logging.File, "logs/fingreat.log")
}

func (e EnvVars) GetOpenerMode() string {
	mode := lookup(openerModeVar, e.file.Server.Opener, OpenerRelay)
	if mode != OpenerRelay && mode != OpenerSystem {
		log.Warn().Str("opener", mode).Msg("unknown opener mode, using relay")
		return OpenerRelay
	}
	return mode
}

func (e EnvVars) GetEnv() string {
	return lookup("ENV", e.file.Server.Env, "DEV")
}

// OriginOf returns the origin of rawURL, or rawURL itself when it does not parse.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func lookup(envVar, fileValue, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

func lookupDuration(envVar, fileValue string, defaultValue time.Duration) time.Duration {
	raw := lookup(envVar, fileValue, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}
