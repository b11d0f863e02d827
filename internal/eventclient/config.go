package eventclient

import (
	"github.com/caarlos0/env/v11"
)

// placeholderURL is substituted when SERVICE_URL is unset. It resolves to
// nothing, so every remote call fails down the normal degraded paths
// instead of crashing at startup.
const placeholderURL = "http://service.invalid"

type Config struct {
	ServiceURL string `env:"SERVICE_URL"`
	ServiceKey string `env:"SERVICE_KEY"`
}

func LoadConfig() Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil || cfg.ServiceURL == "" {
		cfg.ServiceURL = placeholderURL
	}
	return cfg
}
