package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  address: "127.0.0.1"
  port: 9090
  db_path: "/tmp/mesgd-test"
security:
  api_keys:
    keys: ["sk-file"]
hub:
  buffer_size: 16
status:
  default_ttl: 12h
sweep:
  enabled: true
  interval: 5m
limits:
  max_payload_bytes: 4KiB
`

func writeConfig(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadParsesYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr: %q", cfg.Addr())
	}
	if cfg.Server.DBPath != "/tmp/mesgd-test" {
		t.Fatalf("db path: %q", cfg.Server.DBPath)
	}
	if cfg.Hub.BufferSize != 16 {
		t.Fatalf("hub buffer: %d", cfg.Hub.BufferSize)
	}
	if time.Duration(cfg.Status.DefaultTTL) != 12*time.Hour {
		t.Fatalf("ttl: %v", cfg.Status.DefaultTTL)
	}
	if int64(cfg.Limits.MaxPayloadBytes) != 4*1024 {
		t.Fatalf("max payload: %d", cfg.Limits.MaxPayloadBytes)
	}
	if len(cfg.Security.APIKeys.Keys) != 1 || cfg.Security.APIKeys.Keys[0] != "sk-file" {
		t.Fatalf("keys: %v", cfg.Security.APIKeys.Keys)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("MESGD_ADDR", "0.0.0.0:7070")
	t.Setenv("MESGD_API_KEYS", "sk-a, sk-b")
	t.Setenv("MESGD_STATUS_TTL", "48h")
	t.Setenv("MESGD_HUB_BUFFER", "128")

	cfg, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !applyEnvOverrides(cfg) {
		t.Fatal("expected env overrides to apply")
	}
	if cfg.Addr() != "0.0.0.0:7070" {
		t.Fatalf("addr: %q", cfg.Addr())
	}
	if len(cfg.Security.APIKeys.Keys) != 2 || cfg.Security.APIKeys.Keys[1] != "sk-b" {
		t.Fatalf("keys: %v", cfg.Security.APIKeys.Keys)
	}
	if time.Duration(cfg.Status.DefaultTTL) != 48*time.Hour {
		t.Fatalf("ttl: %v", cfg.Status.DefaultTTL)
	}
	if cfg.Hub.BufferSize != 128 {
		t.Fatalf("hub buffer: %d", cfg.Hub.BufferSize)
	}
}

func TestLoadEffectivePrecedence(t *testing.T) {
	p := writeConfig(t)

	// file only
	eff, err := LoadEffective(Flags{Config: p, DB: "./fallback", Set: map[string]bool{"config": true}})
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if eff.Source != "config" || eff.Addr != "127.0.0.1:9090" {
		t.Fatalf("file: source=%s addr=%s", eff.Source, eff.Addr)
	}
	if eff.DBPath != "/tmp/mesgd-test" {
		t.Fatalf("db path from file: %s", eff.DBPath)
	}

	// env beats file
	t.Setenv("MESGD_ADDR", "0.0.0.0:7070")
	eff, err = LoadEffective(Flags{Config: p, DB: "./fallback", Set: map[string]bool{"config": true}})
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if eff.Source != "env" || eff.Addr != "0.0.0.0:7070" {
		t.Fatalf("env: source=%s addr=%s", eff.Source, eff.Addr)
	}

	// flags beat env
	eff, err = LoadEffective(Flags{
		Config: p, Addr: ":6060", DB: "./flagdb",
		Set: map[string]bool{"config": true, "addr": true, "db": true},
	})
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if eff.Source != "flags" || eff.Addr != ":6060" || eff.DBPath != "./flagdb" {
		t.Fatalf("flags: source=%s addr=%s db=%s", eff.Source, eff.Addr, eff.DBPath)
	}
}

func TestLoadEffectiveMissingFileFallsBack(t *testing.T) {
	eff, err := LoadEffective(Flags{
		Config: filepath.Join(t.TempDir(), "absent.yaml"),
		Addr:   ":8080", DB: "./.database",
		Set: map[string]bool{"config": true},
	})
	if err != nil {
		t.Fatalf("load effective: %v", err)
	}
	if eff.DBPath != "./.database" {
		t.Fatalf("db fallback: %s", eff.DBPath)
	}
}
