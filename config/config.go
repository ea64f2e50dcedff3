package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string      `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath string      `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`
	HTTP        HTTPConfig  `yaml:"http"`
	Token       TokenConfig `yaml:"token"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"5s"`
}

// TokenConfig carries the two independent signing secrets and lifetimes.
// A missing secret fails startup, never a request.
type TokenConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"JWT_ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env:"JWT_ACCESS_TTL" env-default:"24h"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env:"JWT_REFRESH_TTL" env-default:"168h"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath fetches config path from command line flag or environment variable.
// Priority: flag > env > default.
// Default value is empty string.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
