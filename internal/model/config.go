package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// TargetConfig holds the configuration for a single remote tracker.
type TargetConfig struct {
	// Name is the section name of this target under "targets".
	Name string `mapstructure:"name" yaml:"name"`

	// Service identifies the adapter kind (e.g., "fossil").
	Service string `mapstructure:"service" yaml:"service"`

	// Options holds the service-specific settings exactly as written
	// (e.g., url, username, report_id). Presence of a key matters:
	// services distinguish a missing key from an empty value.
	Options map[string]string `mapstructure:"options" yaml:"options"`
}

// Has reports whether key was present in the target section.
func (c TargetConfig) Has(key string) bool {
	_, ok := c.Options[key]
	return ok
}

// Get returns the option value for key, or "" when absent.
func (c TargetConfig) Get(key string) string {
	return c.Options[key]
}

// GeneralConfig holds settings shared by every target.
type GeneralConfig struct {
	// Targets selects and orders the target sections to synchronize.
	// When empty, every section under "targets" is used in name order.
	Targets []string `mapstructure:"targets" yaml:"targets"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// Interactive allows secret resolution to prompt on the terminal.
	Interactive bool `mapstructure:"interactive" yaml:"interactive"`

	// DBPath is the location of the local task database.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	General GeneralConfig  `mapstructure:"general" yaml:"general"`
	Targets []TargetConfig `mapstructure:"-" yaml:"-"`
}

// Target returns the target section called name.
func (c *AppConfig) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/fossilsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "fossilsync", "config.yaml")
}

// DefaultDBPath returns the default path for the task database,
// located at ~/.local/share/fossilsync/tasks.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "tasks.db")
	}
	return filepath.Join(home, ".local", "share", "fossilsync", "tasks.db")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Unlike target options, a missing file is an error: there is nothing to
// synchronize without at least one target.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.interactive", true)
	v.SetDefault("general.db_path", DefaultDBPath())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (*AppConfig, error) {
	// Keys are read one by one so that defaults apply to a partially
	// written general section.
	cfg := &AppConfig{
		General: GeneralConfig{
			Targets:     v.GetStringSlice("general.targets"),
			LogLevel:    v.GetString("general.log_level"),
			Interactive: v.GetBool("general.interactive"),
			DBPath:      expandHome(v.GetString("general.db_path")),
		},
	}

	sections := v.GetStringMap("targets")
	if len(sections) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}

	names := cfg.General.Targets
	if len(names) == 0 {
		for name := range sections {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	for _, name := range names {
		// Viper lowercases every key it reads.
		name = strings.ToLower(name)
		raw, ok := sections[name]
		if !ok {
			return nil, fmt.Errorf(
				"general.targets lists %q but no such section exists under targets", name,
			)
		}
		target, err := targetFromSection(name, raw)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, target)
	}

	return cfg, nil
}

// targetFromSection converts one raw YAML section into a TargetConfig.
// Scalar values of any type are kept as strings; services decode them.
func targetFromSection(name string, raw interface{}) (TargetConfig, error) {
	section, err := cast.ToStringMapE(raw)
	if err != nil {
		return TargetConfig{}, fmt.Errorf("target %s: section is not a mapping: %w", name, err)
	}

	target := TargetConfig{
		Name:    name,
		Options: make(map[string]string, len(section)),
	}
	for key, value := range section {
		if key == "service" {
			target.Service = cast.ToString(value)
			continue
		}
		if value == nil {
			target.Options[key] = ""
			continue
		}
		s, err := cast.ToStringE(value)
		if err != nil {
			return TargetConfig{}, fmt.Errorf("target %s: option %s: %w", name, key, err)
		}
		target.Options[key] = s
	}

	if target.Service == "" {
		return TargetConfig{}, fmt.Errorf("target %s: missing service", name)
	}

	return target, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
