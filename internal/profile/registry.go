package profile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ballast/internal/logger"
	"ballast/internal/risk"
	"ballast/internal/risk/constraints"
	"ballast/internal/risk/sizers"
)

// Definition is one named risk profile: a sizer, a constraint chain and
// parameter overrides on top of the base risk configuration.
type Definition struct {
	Name        string         `mapstructure:"-" yaml:"-"`
	Description string         `mapstructure:"description" yaml:"description"`
	Sizer       string         `mapstructure:"sizer" yaml:"sizer"`
	Constraints []string       `mapstructure:"constraints" yaml:"constraints"`
	Risk        map[string]any `mapstructure:"risk" yaml:"risk"`
	Default     bool           `mapstructure:"default" yaml:"default"`
}

// FileConfig maps the profiles file.
type FileConfig struct {
	Profiles map[string]Definition `mapstructure:"profiles" yaml:"profiles"`
}

// Snapshot is a read-only view of the loaded profiles.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Profiles map[string]Definition
}

// ChangeListener fires after every successful reload.
type ChangeListener func(Snapshot)

// Registry loads risk profiles from a YAML file and hot-reloads on change.
// A reload that fails validation keeps the previous snapshot.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read profiles failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("profile reload failed (%s): %v", evt.Name, err)
			return
		}
		r.notify()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current profiles.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Subscribe registers a listener and immediately delivers the current snapshot.
func (r *Registry) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	snap := cloneSnapshot(r.snapshot)
	r.mu.Unlock()
	go func() {
		defer safeRecover("profile listener")
		fn(snap)
	}()
}

func (r *Registry) notify() {
	r.mu.RLock()
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer safeRecover("profile listener")
			cb(snap)
		}(fn)
	}
}

func (r *Registry) reload() error {
	cfg, err := readProfileFile(r.path)
	if err != nil {
		return err
	}
	normalized := make(map[string]Definition, len(cfg.Profiles))
	for name, def := range cfg.Profiles {
		norm, err := normalizeDefinition(name, def)
		if err != nil {
			return err
		}
		normalized[norm.Name] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Profiles: normalized,
	}
	r.mu.Unlock()
	logger.Infof("profile registry loaded %d profiles from %s", len(normalized), filepath.Base(r.path))
	return nil
}

func readProfileFile(path string) (FileConfig, error) {
	raw, err := readAndValidate(path)
	if err != nil {
		return FileConfig{}, err
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse profiles failed: %w", err)
	}
	return cfg, nil
}

func normalizeDefinition(name string, def Definition) (Definition, error) {
	def.Name = strings.TrimSpace(name)
	if def.Name == "" {
		return def, fmt.Errorf("profile name cannot be empty")
	}
	def.Sizer = strings.ToLower(strings.TrimSpace(def.Sizer))
	if def.Sizer == "" {
		def.Sizer = "volatility"
	}
	if _, err := resolveSizer(def.Sizer); err != nil {
		return def, fmt.Errorf("profile %s: %w", def.Name, err)
	}
	if len(def.Constraints) == 0 {
		def.Constraints = DefaultChain()
	}
	normalized := make([]string, 0, len(def.Constraints))
	for _, c := range def.Constraints {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, err := resolveConstraint(c); err != nil {
			return def, fmt.Errorf("profile %s: %w", def.Name, err)
		}
		normalized = append(normalized, c)
	}
	def.Constraints = normalized
	return def, nil
}

// Resolved is a profile turned into runnable pipeline parts.
type Resolved struct {
	Name        string
	Sizer       risk.Sizer
	Constraints []risk.Constraint
	Config      risk.Config
}

// Resolve builds the sizer, constraint chain and effective risk config for a
// named profile, layering the profile's overrides onto base.
func (r *Registry) Resolve(name string, base risk.Config) (Resolved, error) {
	snap := r.Snapshot()
	def, ok := snap.Profiles[strings.TrimSpace(name)]
	if !ok {
		def, ok = defaultProfile(snap)
		if !ok {
			return Resolved{}, fmt.Errorf("unknown profile %q and no default profile defined", name)
		}
	}
	sizer, err := resolveSizer(def.Sizer)
	if err != nil {
		return Resolved{}, err
	}
	chain := make([]risk.Constraint, 0, len(def.Constraints))
	for _, cn := range def.Constraints {
		c, err := resolveConstraint(cn)
		if err != nil {
			return Resolved{}, err
		}
		chain = append(chain, c)
	}
	cfg, err := applyRiskOverrides(base, def.Risk)
	if err != nil {
		return Resolved{}, fmt.Errorf("profile %s: %w", def.Name, err)
	}
	if err := cfg.Validate(); err != nil {
		return Resolved{}, fmt.Errorf("profile %s: %w", def.Name, err)
	}
	return Resolved{Name: def.Name, Sizer: sizer, Constraints: chain, Config: cfg}, nil
}

func defaultProfile(snap Snapshot) (Definition, bool) {
	for _, def := range snap.Profiles {
		if def.Default {
			return def, true
		}
	}
	def, ok := snap.Profiles["default"]
	return def, ok
}

// DefaultChain is the constraint order used when a profile omits one.
func DefaultChain() []string {
	return []string{
		"short_selling",
		"min_position_value",
		"max_position",
		"max_positions",
		"buying_power",
		"gross_leverage",
		"net_leverage",
	}
}

func resolveSizer(name string) (risk.Sizer, error) {
	switch name {
	case "volatility":
		return sizers.Volatility{}, nil
	case "equal_weight":
		return sizers.EqualWeight{}, nil
	case "kelly":
		return sizers.Kelly{}, nil
	case "fixed_fractional":
		return sizers.FixedFractional{}, nil
	case "risk_parity":
		return sizers.RiskParity{}, nil
	case "crypto_fractional":
		return sizers.CryptoFractional{}, nil
	default:
		return nil, fmt.Errorf("unknown sizer %q", name)
	}
}

func resolveConstraint(name string) (risk.Constraint, error) {
	switch name {
	case "short_selling":
		return constraints.ShortSelling{}, nil
	case "min_position_value":
		return constraints.MinPositionValue{}, nil
	case "max_position":
		return constraints.MaxPosition{}, nil
	case "max_positions":
		return constraints.MaxPositions{}, nil
	case "buying_power":
		return constraints.BuyingPower{}, nil
	case "gross_leverage":
		return constraints.GrossLeverage{}, nil
	case "net_leverage":
		return constraints.NetLeverage{}, nil
	case "sector":
		return constraints.Sector{}, nil
	case "correlation":
		return constraints.Correlation{}, nil
	default:
		return nil, fmt.Errorf("unknown constraint %q", name)
	}
}

func applyRiskOverrides(base risk.Config, overrides map[string]any) (risk.Config, error) {
	if len(overrides) == 0 {
		return base, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &base,
		WeaklyTypedInput: true,
		DecodeHook:       decimalDecodeHook,
	})
	if err != nil {
		return base, err
	}
	if err := dec.Decode(overrides); err != nil {
		return base, err
	}
	return base, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Profiles: make(map[string]Definition, len(src.Profiles)),
	}
	for name, def := range src.Profiles {
		dst.Profiles[name] = def
	}
	return dst
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
