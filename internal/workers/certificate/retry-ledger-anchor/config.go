// internal/workers/certificate/retry-ledger-anchor/config.go
package retryledgeranchor

import "time"

type Config struct {
	Timeout   time.Duration
	BatchSize int // used when the job names no certificate and sets no limit
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   2 * time.Minute,
		BatchSize: 50,
	}
}
