// internal/workers/certificate/download-certificate/config.go
package downloadcertificate

import "time"

type Config struct {
	Timeout time.Duration
	// MaxInlineBytes caps the artifact size returned as a process variable.
	MaxInlineBytes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		MaxInlineBytes: 512 * 1024,
	}
}
