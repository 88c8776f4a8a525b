// Package config loads and saves nsfplay's TOML configuration file from
// the platform-appropriate user config directory.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"

	"github.com/arl/nsfplay/emu/log"
)

// Config holds engine-tuning knobs, as opposed to per-invocation CLI flags.
type Config struct {
	// DefaultSong is the 0-based song index nsfplay info reports as the
	// song playback would start at. Zero means the header's own starting
	// song is reported instead.
	DefaultSong int `toml:"default_song"`

	// BankCacheDiagnostics, when true, makes nsfplay info print a note for
	// bank-switched files. It does not change the level of the bank cache's
	// or the header parser's own diagnostics, which are always logged at
	// Debug.
	BankCacheDiagnostics bool `toml:"bank_cache_diagnostics"`

	// LogModules is a comma-separated list of module names to enable debug
	// logging for, same syntax as the --log flag ("all", "no", or a list).
	LogModules string `toml:"log_modules"`
}

const filename = "config.toml"

// Dir is the platform config directory for nsfplay, created on first use.
var Dir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("nsfplay")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEngine.FatalZ("failed to create config directory").
			String("dir", dir).Error("err", err).End()
	}
	return dir
})

// LoadOrDefault loads the configuration from the nsfplay config directory,
// falling back to a zero-value Config if the file is absent or malformed.
func LoadOrDefault() Config {
	var cfg Config
	if _, err := toml.DecodeFile(filepath.Join(Dir(), filename), &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// Save writes cfg to the nsfplay config directory.
func Save(cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(Dir(), filename), buf.Bytes(), 0o644)
}

// ParseLogModules turns a --log-style comma list into a log.ModuleMask.
func ParseLogModules(spec string) (mask log.ModuleMask, disable bool, err error) {
	if spec == "" {
		return 0, false, nil
	}
	for _, name := range strings.Split(spec, ",") {
		switch name {
		case "all":
			mask |= log.ModuleMaskAll
		case "no":
			disable = true
		default:
			mod, ok := log.ModuleByName(name)
			if !ok {
				return 0, false, unknownModuleError(name)
			}
			mask |= mod.Mask()
		}
	}
	return mask, disable, nil
}

type unknownModuleError string

func (e unknownModuleError) Error() string {
	return "unknown log module " + string(e)
}
