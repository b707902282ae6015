package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret     string `yaml:"jwt_secret"`
		GuestUsername string `yaml:"guest_username"`
	} `yaml:"auth"`
	Artifacts struct {
		// Backend selects the artifact store: "fs" or "s3".
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
		S3      struct {
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Bucket    string `yaml:"bucket"`
			UseSSL    bool   `yaml:"use_ssl"`
		} `yaml:"s3"`
	} `yaml:"artifacts"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Artifacts.Backend == "" {
		config.Artifacts.Backend = "fs"
	}
	if config.Artifacts.Dir == "" {
		config.Artifacts.Dir = "saved_models"
	}
	if config.Auth.GuestUsername == "" {
		config.Auth.GuestUsername = "guest"
	}

	return config, nil
}
