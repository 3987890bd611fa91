package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode defaults failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "./db/teamledger.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.Redis.Prefix != "tl" || cfg.Redis.Enabled {
		t.Fatalf("unexpected redis defaults: %+v", cfg.Redis)
	}
	if cfg.Queue.Queues["critical"] != 10 {
		t.Fatalf("unexpected queue weights: %+v", cfg.Queue.Queues)
	}
	if cfg.Ledger.CloseLeaseTTL() != 10*time.Minute {
		t.Fatalf("unexpected close lease ttl: %s", cfg.Ledger.CloseLeaseTTL())
	}
	if cfg.Ledger.ExpireSweepInterval() != time.Hour || cfg.Ledger.TierSweepInterval() != 0 {
		t.Fatalf("unexpected sweep intervals: %+v", cfg.Ledger)
	}
	if cfg.Log.ToLoggerOptions().Filename != "ledger.log" {
		t.Fatalf("unexpected log filename")
	}
}

func TestDecodeReadsYAMLOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	raw := `
server:
  port: "9090"
ledger:
  close_lease_seconds: 30
  tier_sweep_minutes: 15
jwt:
  expire_hours: 0
`
	if err := v.ReadConfig(strings.NewReader(raw)); err != nil {
		t.Fatalf("read yaml failed: %v", err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port override not applied: %s", cfg.Server.Port)
	}
	if cfg.Ledger.CloseLeaseTTL() != 30*time.Second || cfg.Ledger.TierSweepInterval() != 15*time.Minute {
		t.Fatalf("ledger override not applied: %+v", cfg.Ledger)
	}
	if cfg.JWT.ExpireDuration() != 24*time.Hour {
		t.Fatalf("zero expire hours should fall back to 24h")
	}
}
