// Package input builds a runnable model from the run configuration (TOML)
// and the input tables (a single SQLite database, one table per concern).
package input

import (
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// Config is the run configuration.
type Config struct {
	Starttime  time.Time `toml:"starttime"`
	Endtime    time.Time `toml:"endtime"`
	Database   string    `toml:"database"`
	ResultsDir string    `toml:"results_dir"`
	Saveat     float64   `toml:"saveat"` // seconds between reporting flushes
	Solver     struct {
		Abstol float64 `toml:"abstol"`
		Reltol float64 `toml:"reltol"`
	} `toml:"solver"`
}

// ReadConfig parses and validates a TOML run configuration. Relative paths
// resolve against the config file's directory.
func ReadConfig(fp string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(fp, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "input: config %s", fp)
	}
	if cfg.Database == "" {
		return cfg, errors.Newf("input: config %s sets no database", fp)
	}
	if !cfg.Endtime.After(cfg.Starttime) {
		return cfg, errors.Newf("input: endtime %v not after starttime %v", cfg.Endtime, cfg.Starttime)
	}
	dir := filepath.Dir(fp)
	if !filepath.IsAbs(cfg.Database) {
		cfg.Database = filepath.Join(dir, cfg.Database)
	}
	if cfg.ResultsDir != "" && !filepath.IsAbs(cfg.ResultsDir) {
		cfg.ResultsDir = filepath.Join(dir, cfg.ResultsDir)
	}
	return cfg, nil
}
