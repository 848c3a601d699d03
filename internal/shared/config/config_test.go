package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("MIN_DEPOSIT", "250")
	t.Setenv("XIXI_TIMEOUT_SECONDS", "abc")

	cfg := Load()

	if cfg.HTTPPort != "4000" {
		t.Errorf("HTTPPort = %q, want 4000", cfg.HTTPPort)
	}
	if cfg.MinDeposit != 250 {
		t.Errorf("MinDeposit = %d, want 250", cfg.MinDeposit)
	}
	if cfg.Gateway.Timeout != 20*time.Second {
		t.Errorf("invalid int should fall back to default, got %v", cfg.Gateway.Timeout)
	}
	if cfg.TopicDepositApproved != "deposit_approved" {
		t.Errorf("TopicDepositApproved = %q", cfg.TopicDepositApproved)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"local without credentials", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "firestore" }, true},
		{"prod without credentials", func(c *Config) { c.Env = "prod" }, true},
		{"prod with memory store", func(c *Config) {
			c.Env = "prod"
			c.Gateway.APIKey = "k"
			c.Gateway.BusinessID = "b"
			c.StoreDriver = "memory"
		}, true},
		{"prod ok", func(c *Config) {
			c.Env = "prod"
			c.Gateway.APIKey = "k"
			c.Gateway.BusinessID = "b"
		}, false},
		{"zero minimum", func(c *Config) { c.MinDeposit = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Env: "local", StoreDriver: "postgres", MinDeposit: 100}
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
