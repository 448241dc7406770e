package app

import (
	"fmt"
	"os"

	"mesgd/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, MESGD_DB_PATH env, or server.db_path in config")
	}

	switch eff.Config.Server.Engine {
	case "", "nethttp", "fasthttp":
	default:
		return fmt.Errorf("unknown server.engine %q: expected nethttp or fasthttp", eff.Config.Server.Engine)
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	minTTL := eff.Config.Status.MinTTL.Duration()
	maxTTL := eff.Config.Status.MaxTTL.Duration()
	if minTTL > 0 && maxTTL > 0 && minTTL > maxTTL {
		return fmt.Errorf("status.min_ttl %s exceeds status.max_ttl %s", minTTL, maxTTL)
	}
	defTTL := eff.Config.Status.DefaultTTL.Duration()
	if defTTL > 0 {
		if minTTL > 0 && defTTL < minTTL {
			return fmt.Errorf("status.default_ttl %s is below status.min_ttl %s", defTTL, minTTL)
		}
		if maxTTL > 0 && defTTL > maxTTL {
			return fmt.Errorf("status.default_ttl %s is above status.max_ttl %s", defTTL, maxTTL)
		}
	}

	return nil
}
