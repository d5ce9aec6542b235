package binance

import (
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL  string
	HTTPTimeout  time.Duration
	ProxyEnabled bool
	RESTProxyURL string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	c.RESTProxyURL = strings.TrimSpace(c.RESTProxyURL)
	return c
}
