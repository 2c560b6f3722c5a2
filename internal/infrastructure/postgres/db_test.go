package postgres

import (
	"context"
	"testing"
	"time"
)

func TestParsePoolConfig(t *testing.T) {
	config, err := parsePoolConfig(PoolConfig{
		DatabaseURL: "postgres://ledger@localhost:5432/ledger?sslmode=disable",
		MaxConns:    10,
		MinConns:    2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.MaxConns != 10 || config.MinConns != 2 {
		t.Fatalf("unexpected conns max=%d min=%d", config.MaxConns, config.MinConns)
	}
	if config.ConnConfig.ConnectTimeout != 5*time.Second {
		t.Fatalf("expected default connect timeout 5s, got %s", config.ConnConfig.ConnectTimeout)
	}
	if got := config.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Fatalf("expected application_name %q, got %q", applicationName, got)
	}
}

func TestParsePoolConfigKeepsApplicationName(t *testing.T) {
	config, err := parsePoolConfig(PoolConfig{
		DatabaseURL: "postgres://ledger@localhost:5432/ledger?application_name=worker",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := config.ConnConfig.RuntimeParams["application_name"]; got != "worker" {
		t.Fatalf("expected application_name from URL, got %q", got)
	}
}

func TestNewPoolWithConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  PoolConfig
	}{
		{
			name: "invalid url",
			cfg:  PoolConfig{DatabaseURL: "not-a-url"},
		},
		{
			name: "min above max",
			cfg:  PoolConfig{DatabaseURL: "postgres://ledger@localhost/ledger", MaxConns: 2, MinConns: 5},
		},
		{
			name: "unreachable server",
			cfg: PoolConfig{
				DatabaseURL:    "postgres://ledger@127.0.0.1:1/db?sslmode=disable",
				MaxConns:       1,
				ConnectTimeout: time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPoolWithConfig(context.Background(), tt.cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
