// internal/workers/deck/update-ranking-config/config.go
package updaterankingconfig

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
