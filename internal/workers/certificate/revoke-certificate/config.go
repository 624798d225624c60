// internal/workers/certificate/revoke-certificate/config.go
package revokecertificate

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
