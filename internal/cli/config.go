package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/relir/internal/iteration"
	"github.com/roach88/relir/internal/relation"
	"github.com/roach88/relir/internal/sqlengine"
	"github.com/roach88/relir/internal/store"
)

// Engine kinds a config may declare.
const (
	KindIteration = "iteration"
	KindSQL       = "sql"
)

// EngineConfig declares one engine documents may refer to by name.
type EngineConfig struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
	// Options overrides the capability flags of the engine kind.
	Options *relation.EngineOptions `mapstructure:"options"`
}

// Config is the relir.yaml file, overridden by RELIR_* environment
// variables.
type Config struct {
	Engines       []EngineConfig `mapstructure:"engines"`
	DB            string         `mapstructure:"db"`
	LeafCacheSize int            `mapstructure:"leaf_cache_size"`
}

// DefaultConfig declares one engine of each kind, named after the kind.
func DefaultConfig() *Config {
	return &Config{
		Engines:       defaultEngines(),
		LeafCacheSize: iteration.DefaultLeafCacheSize,
	}
}

func defaultEngines() []EngineConfig {
	return []EngineConfig{
		{Name: KindIteration, Kind: KindIteration},
		{Name: KindSQL, Kind: KindSQL},
	}
}

// LoadConfig reads path, or relir.yaml from the working directory or
// $HOME/.relir when path is empty. A missing default file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("db", "")
	v.SetDefault("leaf_cache_size", iteration.DefaultLeafCacheSize)

	v.SetEnvPrefix("RELIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relir")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.relir")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Engines) == 0 {
		cfg.Engines = defaultEngines()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unnamed, duplicate and unknown-kind engines.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, e := range c.Engines {
		if e.Name == "" {
			return fmt.Errorf("engines[%d]: missing name", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("engines[%d]: duplicate engine %q", i, e.Name)
		}
		seen[e.Name] = true
		switch e.Kind {
		case KindIteration, KindSQL:
		default:
			return fmt.Errorf("engines[%d]: engine %q has unknown kind %q (want %s or %s)", i, e.Name, e.Kind, KindIteration, KindSQL)
		}
	}
	if c.LeafCacheSize <= 0 {
		return fmt.Errorf("leaf_cache_size must be positive, got %d", c.LeafCacheSize)
	}
	return nil
}

// Engine looks up a declared engine by name.
func (c *Config) Engine(name string) (EngineConfig, bool) {
	for _, e := range c.Engines {
		if e.Name == name {
			return e, true
		}
	}
	return EngineConfig{}, false
}

// EngineSet holds the engines built from a Config, in declaration order.
type EngineSet struct {
	engines []relation.Engine
	kinds   map[relation.Engine]string
	store   *store.Store
}

// BuildEngines creates every declared engine. SQL engines execute against
// st, which may be nil when nothing will run.
func (c *Config) BuildEngines(st *store.Store, logger *slog.Logger) (*EngineSet, error) {
	set := &EngineSet{kinds: map[relation.Engine]string{}, store: st}
	for _, ec := range c.Engines {
		var e relation.Engine
		switch ec.Kind {
		case KindIteration:
			opts := []iteration.Option{
				iteration.WithLogger(logger),
				iteration.WithLeafCacheSize(c.LeafCacheSize),
			}
			if ec.Options != nil {
				opts = append(opts, iteration.WithEngineOptions(*ec.Options))
			}
			mem, err := iteration.New(ec.Name, opts...)
			if err != nil {
				return nil, fmt.Errorf("engine %s: %w", ec.Name, err)
			}
			e = mem
		case KindSQL:
			opts := []sqlengine.Option{sqlengine.WithLogger(logger)}
			if st != nil {
				opts = append(opts, sqlengine.WithStore(st))
			}
			if ec.Options != nil {
				opts = append(opts, sqlengine.WithEngineOptions(*ec.Options))
			}
			e = sqlengine.New(ec.Name, opts...)
		default:
			return nil, fmt.Errorf("engine %s: unknown kind %q", ec.Name, ec.Kind)
		}
		set.engines = append(set.engines, e)
		set.kinds[e] = ec.Kind
	}
	return set, nil
}

// All returns the engines in declaration order.
func (s *EngineSet) All() []relation.Engine {
	return append([]relation.Engine(nil), s.engines...)
}

// Lookup finds an engine by name.
func (s *EngineSet) Lookup(name string) (relation.Engine, bool) {
	for _, e := range s.engines {
		if e.String() == name {
			return e, true
		}
	}
	return nil, false
}

// Kind reports whether e is an iteration or a SQL engine.
func (s *EngineSet) Kind(e relation.Engine) string {
	return s.kinds[e]
}

// Store is the database SQL engines run against, or nil.
func (s *EngineSet) Store() *store.Store {
	return s.store
}
