package config

import "time"

type Backend struct {
	file *FileValues
}

var _ BackendConfig = Backend{}

func (b Backend) GetAPIURL() string {
	return lookup("API_URL", b.file.Backend.URL, "http://localhost:8000")
}

func (b Backend) GetAPITimeout() time.Duration {
	return lookupDuration("API_TIMEOUT", b.file.Backend.Timeout, 30*time.Second)
}
