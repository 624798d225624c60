// internal/workers/communication/send-certificate-notification/config.go
package sendcertificatenotification

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
