// internal/workers/deck/get-ranking-config/config.go
package getrankingconfig

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
