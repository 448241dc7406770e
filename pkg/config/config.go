package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the merged view of file, env and flags that the
// rest of the process consumes. Flags win over env, env over file.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env" or "config"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags
// struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and MESGD_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("MESGD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnvOverrides mutates cfg with MESGD_* environment values and
// reports whether any were present.
func applyEnvOverrides(cfg *Config) bool {
	used := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("MESGD_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("MESGD_DB_PATH"); v != "" {
		used = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("MESGD_ENGINE"); v != "" {
		used = true
		cfg.Server.Engine = v
	}
	if v := os.Getenv("MESGD_PROBE_ADDR"); v != "" {
		used = true
		cfg.Server.ProbeAddress = v
	}
	if v := os.Getenv("MESGD_API_KEYS"); v != "" {
		used = true
		cfg.Security.APIKeys.Keys = parseList(v)
	}
	if v := os.Getenv("MESGD_ALLOW_UNAUTH"); v != "" {
		used = true
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			cfg.Security.APIKeys.AllowUnauth = true
		default:
			cfg.Security.APIKeys.AllowUnauth = false
		}
	}
	if v := os.Getenv("MESGD_CORS_ORIGINS"); v != "" {
		used = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("MESGD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			used = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("MESGD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			used = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("MESGD_IP_WHITELIST"); v != "" {
		used = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("MESGD_STATUS_TTL"); v != "" {
		if td, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			used = true
			cfg.Status.DefaultTTL = Duration(td)
		}
	}
	if v := os.Getenv("MESGD_SWEEP_INTERVAL"); v != "" {
		if td, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			used = true
			cfg.Sweep.Enabled = true
			cfg.Sweep.Interval = Duration(td)
		}
	}
	if v := os.Getenv("MESGD_HUB_BUFFER"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			used = true
			cfg.Hub.BufferSize = n
		}
	}
	if v := os.Getenv("MESGD_BLOB_DIR"); v != "" {
		used = true
		cfg.Blob.Dir = v
	}
	if c := os.Getenv("MESGD_TLS_CERT"); c != "" {
		used = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("MESGD_TLS_KEY"); k != "" {
		used = true
		cfg.Server.TLS.KeyFile = k
	}
	return used
}

// LoadEffective merges file, env and flags into the effective config the
// process runs with.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	source := "config"
	if err != nil {
		if !os.IsNotExist(err) {
			return EffectiveConfigResult{}, err
		}
		cfg = &Config{}
		source = "flags"
	}
	if applyEnvOverrides(cfg) {
		source = "env"
	}

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
		source = "flags"
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || flags.Set["db"] {
		dbPath = flags.DB
	}

	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: source}, nil
}
