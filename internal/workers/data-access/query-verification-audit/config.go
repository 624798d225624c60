// internal/workers/data-access/query-verification-audit/config.go
package queryverificationaudit

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
