package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SAVINGS_FRACTION", "")
	t.Setenv("EVENT_WORKERS", "")
	t.Setenv("WEBHOOK_TIMEOUT", "")

	cfg := Load()
	if got := cfg.SavingsFraction.String(); got != "0.1" {
		t.Fatalf("fraction = %s, want 0.1", got)
	}
	if cfg.EventWorkers != 10 || cfg.WebhookWorkers != 20 {
		t.Fatalf("workers = %d/%d, want 10/20", cfg.EventWorkers, cfg.WebhookWorkers)
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Fatalf("webhook timeout = %s", cfg.WebhookTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SAVINGS_FRACTION", "0.25")
	t.Setenv("EVENT_WORKERS", "3")
	t.Setenv("PROCESSING_LEASE", "90s")
	t.Setenv("RUN_WORKERS", "false")

	cfg := Load()
	if got := cfg.SavingsFraction.String(); got != "0.25" {
		t.Fatalf("fraction = %s", got)
	}
	if cfg.EventWorkers != 3 {
		t.Fatalf("event workers = %d", cfg.EventWorkers)
	}
	if cfg.ProcessingLease != 90*time.Second {
		t.Fatalf("processing lease = %s", cfg.ProcessingLease)
	}
	if cfg.RunWorkers {
		t.Fatal("RUN_WORKERS=false ignored")
	}
}

func TestParseFraction(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"0.1", false},
		{"1", false},
		{"0.0001", false},
		{"0", true},
		{"-0.2", true},
		{"1.01", true},
		{"abc", true},
	}
	for _, tc := range cases {
		_, err := ParseFraction(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseFraction(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
	}
}

func TestValidateRejectsBadFraction(t *testing.T) {
	t.Setenv("SAVINGS_FRACTION", "2")
	if err := Load().Validate(); err == nil {
		t.Fatal("expected error for fraction 2")
	}
}
