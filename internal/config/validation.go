package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	if strings.TrimSpace(c.Profiles.Path) == "" {
		return fmt.Errorf("profiles.path cannot be empty")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.Sources) == 0 {
		return fmt.Errorf("market.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(src.RESTBaseURL) == "" {
			return fmt.Errorf("market source %s missing rest_base_url", src.Name)
		}
		if src.Proxy.Enabled && src.Proxy.RESTURL == "" {
			return fmt.Errorf("market source %s has proxy enabled but no rest_url", src.Name)
		}
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if activeName == "" || name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled market.active_source=%s not found", m.ActiveSource)
	}
	if !IsValidInterval(m.Interval) {
		return fmt.Errorf("market.interval %q is not a valid interval", m.Interval)
	}
	if m.ATRPeriod <= 1 {
		return fmt.Errorf("market.atr_period must be > 1")
	}
	if m.LookbackBars <= m.ATRPeriod {
		return fmt.Errorf("market.lookback_bars must exceed market.atr_period")
	}
	return nil
}

// IsValidInterval accepts intervals like 1m, 15m, 4h, 1d, 1w: digits followed
// by a unit suffix.
func IsValidInterval(s string) bool {
	if s == "" {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
