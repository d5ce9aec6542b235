package config

import (
	"strings"

	"ballast/internal/risk"
)

// Config is the top-level configuration for a ballast process.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Market   MarketConfig   `mapstructure:"market"`
	Store    StoreConfig    `mapstructure:"store"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	Risk     risk.Config    `mapstructure:"risk"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// MarketConfig selects the market data source and shapes the snapshot
// builder: bar interval, ATR period and how much history to pull.
type MarketConfig struct {
	ActiveSource string         `mapstructure:"active_source"`
	Sources      []MarketSource `mapstructure:"sources"`
	Interval     string         `mapstructure:"interval"`
	ATRPeriod    int            `mapstructure:"atr_period"`
	LookbackBars int            `mapstructure:"lookback_bars"`
	CachePath    string         `mapstructure:"cache_path"`
	WatchSymbols []string       `mapstructure:"watch_symbols"`
}

type MarketSource struct {
	Name        string      `mapstructure:"name"`
	Enabled     bool        `mapstructure:"enabled"`
	RESTBaseURL string      `mapstructure:"rest_base_url"`
	Proxy       ProxyConfig `mapstructure:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RESTURL string `mapstructure:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type ProfilesConfig struct {
	Path   string `mapstructure:"path"`
	Active string `mapstructure:"active"`
}

func (m MarketConfig) ResolveActiveSource() MarketSource {
	if len(m.Sources) == 0 {
		return MarketSource{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if fallback.Name == "" {
			fallback = src
		}
		if !src.Enabled {
			continue
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

// keySet tracks field paths explicitly present in the config files, so
// defaults never clobber an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for one field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
