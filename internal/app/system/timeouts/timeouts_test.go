package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure_ZeroKeepsCurrent(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second})
	if Short() != 7*time.Second {
		t.Errorf("Short = %v, want 7s", Short())
	}
	if Medium() != DefaultMedium {
		t.Errorf("Medium = %v, want default", Medium())
	}

	Configure(Config{})
	if Short() != 7*time.Second {
		t.Error("zero config should not reset Short")
	}

	Reset()
	if Current() != (Config{DefaultPing, DefaultShort, DefaultMedium, DefaultLong, DefaultUpstream}) {
		t.Errorf("Reset left %+v", Current())
	}
}

func TestWithTimeout(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.New(core), "cascade delete")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("expected one timeout warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["operation"]; got != "cascade delete" {
		t.Errorf("operation = %v", got)
	}

	ctx, cancel = WithTimeout(context.Background(), time.Minute, zap.New(core), "quick")
	cancel()
	_ = ctx
	if logs.Len() != 1 {
		t.Error("early cancel should not warn")
	}
}
