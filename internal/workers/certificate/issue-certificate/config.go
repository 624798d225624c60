// internal/workers/certificate/issue-certificate/config.go
package issuecertificate

import "time"

// Timeout bounds the whole saga: render, upload, insert and the ledger write.
type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
