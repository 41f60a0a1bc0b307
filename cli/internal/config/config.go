// Package config loads and saves the carton CLI configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/carton-db/carton/runtime/property"
)

// AppFs is the filesystem every config read and write goes through.
// Tests swap it for an in-memory one.
var AppFs = afero.NewOsFs()

// Config holds the CLI configuration: the target database and the table
// definitions the ddl and query commands work from.
type Config struct {
	Provider string
	URL      string
	// Tables maps table name to property name to kind name.
	Tables map[string]map[string]string
}

// Load reads configuration from carton.yaml (working directory, home,
// or ~/.config/carton), CARTON_* environment variables, and .env files.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("carton")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, ".config", "carton"))

	viper.SetEnvPrefix("CARTON")
	viper.AutomaticEnv()

	viper.SetDefault("provider", "sqlite")

	// Missing config file is fine; flags and env still apply.
	_ = viper.ReadInConfig()

	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	cfg := &Config{
		Provider: viper.GetString("provider"),
		URL:      viper.GetString("url"),
	}
	if cfg.URL == "" {
		cfg.URL = os.Getenv("DATABASE_URL")
	}
	if err := viper.UnmarshalKey("tables", &cfg.Tables); err != nil {
		return nil, fmt.Errorf("invalid tables section: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")
	v.Set("provider", cfg.Provider)
	if cfg.URL != "" {
		v.Set("url", cfg.URL)
	}
	if len(cfg.Tables) > 0 {
		v.Set("tables", cfg.Tables)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := AppFs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(path)
}

// TableNames returns the configured table names, sorted.
func (c *Config) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertySet builds the property set for a configured table. Property
// order is name-sorted so generated column order is stable.
func (c *Config) PropertySet(table string) (*property.Set, error) {
	defs, ok := c.Tables[table]
	if !ok {
		return nil, fmt.Errorf("table %s is not defined in carton.yaml", table)
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]property.Property, 0, len(names))
	for _, name := range names {
		kind, err := property.ParseKind(defs[name])
		if err != nil {
			return nil, fmt.Errorf("table %s property %s: %w", table, name, err)
		}
		props = append(props, property.Property{Name: name, Kind: kind})
	}
	return property.NewSet(props...)
}
