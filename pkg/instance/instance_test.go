package instance

import "testing"

func TestIDPrefersExplicitSetting(t *testing.T) {
	t.Setenv("DYNO", "web.1")
	t.Setenv("CHOPMART_INSTANCE_ID", "cron-a")
	if got := ID(); got != "cron-a" {
		t.Fatalf("expected cron-a, got %q", got)
	}
}

func TestIDFallsBackToPlatform(t *testing.T) {
	t.Setenv("CHOPMART_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.2")
	if got := ID(); got != "worker.2" {
		t.Fatalf("expected worker.2, got %q", got)
	}
}

func TestIDNeverEmpty(t *testing.T) {
	t.Setenv("CHOPMART_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if ID() == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
