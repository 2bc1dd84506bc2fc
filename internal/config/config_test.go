package config

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port == "" {
		t.Error("Server.Port should have a default")
	}
	if cfg.Database.Postgres.MaxConnections <= 0 {
		t.Error("Postgres.MaxConnections should default to a positive value")
	}
	if cfg.Defaults.APYBasisPoints != 1500 {
		t.Errorf("Defaults.APYBasisPoints = %d, want 1500", cfg.Defaults.APYBasisPoints)
	}
	if cfg.Oracle.CacheTTL <= 0 {
		t.Error("Oracle.CacheTTL should have a positive default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DEFAULT_APY_BASIS_POINTS", "2000")
	t.Setenv("ADMIN_TOKEN", " secret-token ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
	}
	if cfg.Defaults.APYBasisPoints != 2000 {
		t.Errorf("Defaults.APYBasisPoints = %d, want 2000", cfg.Defaults.APYBasisPoints)
	}
	if cfg.Admin.Token != "secret-token" {
		t.Errorf("Admin.Token = %q, want trimmed token", cfg.Admin.Token)
	}
}

func TestLoadConfigRejectsNegativeAPY(t *testing.T) {
	t.Setenv("DEFAULT_APY_BASIS_POINTS", "-100")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject a negative default APY")
	}
}
