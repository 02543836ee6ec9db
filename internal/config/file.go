package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configFileVar = "FINGREAT_CONFIG"

// FileValues mirrors the YAML config file. Every field is optional.
type FileValues struct {
	Server struct {
		Port           string   `yaml:"port"`
		AppName        string   `yaml:"app_name"`
		BaseURL        string   `yaml:"base_url"`
		DataFolder     string   `yaml:"data_folder"`
		Env            string   `yaml:"env"`
		Opener         string   `yaml:"opener"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Upstox struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
		BaseURL      string `yaml:"base_url"`
	} `yaml:"upstox"`
	Backend struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"backend"`
	Timing struct {
		QuoteInterval       string `yaml:"quote_interval"`
		ConnectPollInterval string `yaml:"connect_poll_interval"`
		ConnectTimeout      string `yaml:"connect_timeout"`
		PopupCloseDelay     string `yaml:"popup_close_delay"`
	} `yaml:"timing"`
}

// LoadFile reads the YAML file at path. An empty path yields empty values.
func LoadFile(path string) (*FileValues, error) {
	values := &FileValues{}
	if path == "" {
		return values, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[LoadFile] read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, values); err != nil {
		return nil, fmt.Errorf("[LoadFile] parse %s: %w", path, err)
	}
	return values, nil
}
