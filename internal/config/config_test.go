package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "github.com/suprun/ck-blackout-bot/pkg/logx"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSONWithDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc"},
  "channels": {"3.1": -100123}
}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "Europe/Kyiv" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if cfg.Schedule.TodayFile != "schedule.json" || cfg.Schedule.TomorrowFile != "schedule_tomorrow.json" {
		t.Fatalf("schedule defaults: %+v", cfg.Schedule)
	}
	if cfg.Planner.PreWarn != "5m" {
		t.Fatalf("pre_warn = %q", cfg.Planner.PreWarn)
	}
	if cfg.Ledger.Driver != "file" || cfg.Ledger.MaxEntries != 1000 || cfg.Ledger.Retention != "240h" {
		t.Fatalf("ledger defaults: %+v", cfg.Ledger)
	}
	if cfg.Notifier.RatePerSec != 3 {
		t.Fatalf("rate = %d", cfg.Notifier.RatePerSec)
	}
	if cfg.Channels["3.1"] != -100123 {
		t.Fatalf("channels = %v", cfg.Channels)
	}
	if m.Get() != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
timezone: Europe/Kyiv
ledger:
  driver: sqlite
  path: ledger.db
channels:
  "1.1": -1
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ledger.Driver != "sqlite" || cfg.Ledger.Path != "ledger.db" {
		t.Fatalf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Channels["1.1"] != -1 {
		t.Fatalf("channels = %v", cfg.Channels)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}, "typo_field": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "  "}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected missing-token error")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}}{"extra": true}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("planner.pre_warn", "5m")
	if err != nil || d != 5*time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "five minutes"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	d, err = ParseDurationOrDefault("x", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}

func TestReloadSkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}}`)

	m := NewManager(path)
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	fired := 0
	m.OnChange(func(*Config) { fired++ })

	// Same content rewritten: hash unchanged, callback must not fire.
	if err := os.WriteFile(path, []byte(`{"telegram": {"token": "t"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if fired != 0 {
		t.Fatalf("onChange fired %d times for identical content", fired)
	}

	if err := os.WriteFile(path, []byte(`{"telegram": {"token": "t2"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if fired != 1 {
		t.Fatalf("onChange fired %d times, want 1", fired)
	}
	if m.Get().Telegram.Token != "t2" {
		t.Fatal("reload did not commit the new config")
	}
}

func TestReloadKeepsPreviousOnParseError(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}}`)

	m := NewManager(path)
	m.SetLogger(logx.Nop())
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	m.reload()
	if m.Get() == nil || m.Get().Telegram.Token != "t" {
		t.Fatal("broken reload must keep the previous config")
	}
}
