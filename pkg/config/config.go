// Package config resolves kaprica's daemon options (seat, database path,
// size/expire/count caps) from an INI file and command-line overrides,
// command line winning. The load order follows a file-then-overrides
// pattern: read the file, layer command-line values on top, then
// validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/ArtsyMacaw/kaprica/pkg/errors"
)

const (
	DefaultExpireDays = 30
	DefaultSizeCap    = 2 * 1024 * 1024 * 1024 // 2 GiB
	DefaultLimit      = 10000
)

// Options is the full set of daemon-recognized settings.
type Options struct {
	Seat     string
	Database string
	Size     uint64
	Expire   int
	Limit    int
	Config   string
}

// Overrides holds command-line-supplied values; a zero value for any field
// means "not given on the command line" and lets the INI file (or the
// built-in default) take effect. Command line always wins when set.
type Overrides struct {
	Seat     string
	Database string
	Size     string // raw "(x)KB/MB/GB" form, parsed the same as the INI value
	Expire   int
	Limit    int
	Config   string
}

// Load resolves Options by reading the INI config file (found via
// FindConfigFile, or ov.Config if set) and layering command-line overrides
// on top. The command line always wins.
func Load(ov Overrides) (*Options, error) {
	opts := &Options{
		Size:   DefaultSizeCap,
		Expire: DefaultExpireDays,
		Limit:  DefaultLimit,
	}

	path := ov.Config
	if path == "" {
		path = FindConfigFile("")
	}
	if path != "" {
		if err := loadFromFile(path, opts); err != nil {
			return nil, err
		}
	}

	if err := applyOverrides(opts, ov); err != nil {
		return nil, err
	}

	if err := validate(opts); err != nil {
		return nil, err
	}

	if opts.Database == "" {
		db, err := DefaultDatabasePath()
		if err != nil {
			return nil, errors.ValidationError("could not resolve default database path: " + err.Error())
		}
		opts.Database = db
	}

	return opts, nil
}

// FindConfigFile searches, in order: an explicit override, then
// $XDG_CONFIG_HOME/kaprica/config (or $HOME/.config/kaprica/config when
// XDG_CONFIG_HOME is unset), then /etc/kaprica/config. Returns "" if none
// exist; that is not an error, the daemon runs on defaults.
func FindConfigFile(override string) string {
	if override != "" {
		return override
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate := filepath.Join(xdg, "kaprica", "config")
		if fileExists(candidate) {
			return candidate
		}
	} else if home := os.Getenv("HOME"); home != "" {
		candidate := filepath.Join(home, ".config", "kaprica", "config")
		if fileExists(candidate) {
			return candidate
		}
	}

	if fileExists("/etc/kaprica/config") {
		return "/etc/kaprica/config"
	}
	return ""
}

// DefaultDatabasePath resolves the default store location:
// $XDG_DATA_HOME/kaprica/history.db, else $HOME/.local/share/kaprica/history.db.
func DefaultDatabasePath() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "kaprica", "history.db"), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", fmt.Errorf("neither XDG_DATA_HOME nor HOME is set")
	}
	return filepath.Join(home, ".local", "share", "kaprica", "history.db"), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadFromFile(path string, opts *Options) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return errors.ValidationError("failed to parse config file " + path + ": " + err.Error())
	}

	section := cfg.Section("")
	if v := section.Key("seat").String(); v != "" {
		opts.Seat = v
	}
	if v := section.Key("database").String(); v != "" {
		opts.Database = v
	}
	if v := section.Key("size").String(); v != "" {
		size, err := ParseSize(v)
		if err != nil {
			return errors.ValidationError("invalid size in config file: " + err.Error())
		}
		opts.Size = size
	}
	if v := section.Key("expire").String(); v != "" {
		expire, err := strconv.Atoi(v)
		if err != nil {
			return errors.ValidationError("invalid expire in config file: " + err.Error())
		}
		opts.Expire = expire
	}
	if v := section.Key("limit").String(); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return errors.ValidationError("invalid limit in config file: " + err.Error())
		}
		opts.Limit = limit
	}

	return nil
}

// applyOverrides lets every non-zero-value Overrides field win over
// whatever the file (or default) set, honoring the command-line-wins
// configuration contract. An unparsable Size is reported as an error.
func applyOverrides(opts *Options, ov Overrides) error {
	if ov.Seat != "" {
		opts.Seat = ov.Seat
	}
	if ov.Database != "" {
		opts.Database = ov.Database
	}
	if ov.Size != "" {
		size, err := ParseSize(ov.Size)
		if err != nil {
			return errors.ValidationError("invalid size: " + err.Error())
		}
		opts.Size = size
	}
	if ov.Expire != 0 {
		opts.Expire = ov.Expire
	}
	if ov.Limit != 0 {
		opts.Limit = ov.Limit
	}
	if ov.Config != "" {
		opts.Config = ov.Config
	}
	return nil
}

// ParseSize parses a "(x)KB/MB/GB" size string into bytes, per the
// kapricad.c parse_size() grammar (a trailing unit suffix is required).
func ParseSize(size string) (uint64, error) {
	trimmed := strings.TrimSpace(size)
	multiplier := uint64(1)
	var numeric string

	switch {
	case strings.HasSuffix(trimmed, "GB"):
		multiplier = 1024 * 1024 * 1024
		numeric = strings.TrimSuffix(trimmed, "GB")
	case strings.HasSuffix(trimmed, "MB"):
		multiplier = 1024 * 1024
		numeric = strings.TrimSuffix(trimmed, "MB")
	case strings.HasSuffix(trimmed, "KB"):
		multiplier = 1024
		numeric = strings.TrimSuffix(trimmed, "KB")
	default:
		return 0, fmt.Errorf("invalid size format %q, expected a KB/MB/GB suffix", size)
	}

	value, err := strconv.ParseUint(strings.TrimSpace(numeric), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format %q: %w", size, err)
	}
	return value * multiplier, nil
}

func validate(opts *Options) error {
	if opts.Expire < 0 {
		return errors.ValidationError("expire must not be negative")
	}
	if opts.Limit < 0 {
		return errors.ValidationError("limit must not be negative")
	}
	return nil
}
