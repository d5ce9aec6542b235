package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":9991"
	defaultAppLogPath      = "data/logs/ballast.log"
	defaultMarketName      = "binance"
	defaultMarketREST      = "https://fapi.binance.com"
	defaultMarketInterval  = "1h"
	defaultMarketATRPeriod = 14
	defaultMarketLookback  = 200
	defaultMarketCachePath = "data/db/candles"
	defaultStorePath       = "data/db/ballast.db"
	defaultProfilesPath    = "configs/profiles.yaml"
	defaultProfileActive   = "default"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Profiles.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 {
		m.Sources = []MarketSource{{
			Name:        defaultMarketName,
			Enabled:     true,
			RESTBaseURL: defaultMarketREST,
		}}
	}
	for i := range m.Sources {
		src := &m.Sources[i]
		src.Proxy.normalize()
		if strings.TrimSpace(src.Name) == "" {
			src.Name = defaultMarketName
		}
		if src.RESTBaseURL == "" {
			src.RESTBaseURL = defaultMarketREST
		}
	}
	if strings.TrimSpace(m.ActiveSource) == "" {
		m.ActiveSource = firstEnabledSource(m.Sources)
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		stringFieldDefault("market.cache_path", &m.CachePath, defaultMarketCachePath),
		fieldDefault{
			key:   "market.atr_period",
			need:  func() bool { return m.ATRPeriod <= 0 },
			apply: func() { m.ATRPeriod = defaultMarketATRPeriod },
		},
		fieldDefault{
			key:   "market.lookback_bars",
			need:  func() bool { return m.LookbackBars <= 0 },
			apply: func() { m.LookbackBars = defaultMarketLookback },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (p *ProfilesConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("profiles.path", &p.Path, defaultProfilesPath),
		stringFieldDefault("profiles.active", &p.Active, defaultProfileActive),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledSource(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}
