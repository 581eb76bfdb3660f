package costguard

import (
	"context"
	"testing"
)

func TestEvaluate_NoBudgetAlwaysAllowed(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"anonymous": 1.0})

	decision := guard.Evaluate(context.Background(), "internal", 99999.0)
	if !decision.Allowed {
		t.Fatal("profile without a budget should always be allowed")
	}
	if decision.Remaining != nil {
		t.Fatalf("remaining should be nil for unbudgeted profile, got %v", *decision.Remaining)
	}
	if guard.Remaining(context.Background(), "internal") != nil {
		t.Fatal("Remaining should be nil for unbudgeted profile")
	}
}

func TestEvaluate_AllowedWithinBudget(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"anonymous": 1.0})

	decision := guard.Evaluate(context.Background(), "anonymous", 0.1)
	if !decision.Allowed {
		t.Fatal("spend within budget should be allowed")
	}
	if decision.Remaining == nil || *decision.Remaining != 0.9 {
		t.Fatalf("remaining after hypothetical spend should be 0.9, got %v", decision.Remaining)
	}
}

func TestEvaluate_DeniedOverBudget(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"anonymous": 1.0})
	guard.Record(context.Background(), "anonymous", 0.95)

	decision := guard.Evaluate(context.Background(), "anonymous", 0.1)
	if decision.Allowed {
		t.Fatal("spend over budget should be denied")
	}
	if decision.Remaining == nil {
		t.Fatal("denial should carry the remaining budget")
	}
	if got := *decision.Remaining; got < 0.0499 || got > 0.0501 {
		t.Fatalf("remaining on denial should be ~0.05, got %v", got)
	}
}

func TestEvaluate_DenialRemainingNeverNegative(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"anonymous": 1.0})
	guard.Record(context.Background(), "anonymous", 2.0)

	decision := guard.Evaluate(context.Background(), "anonymous", 0.1)
	if decision.Allowed {
		t.Fatal("exhausted budget should deny")
	}
	if *decision.Remaining != 0 {
		t.Fatalf("remaining should clamp to 0, got %v", *decision.Remaining)
	}
}

func TestRecord_IsAdditive(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"api_key": 5.0})

	guard.Record(context.Background(), "api_key", 1.0)
	guard.Record(context.Background(), "api_key", 0.5)

	remaining := guard.Remaining(context.Background(), "api_key")
	if remaining == nil || *remaining != 3.5 {
		t.Fatalf("remaining should be 3.5 after recording 1.5, got %v", remaining)
	}
}

func TestRecord_UnknownProfileTracked(t *testing.T) {
	guard := NewMemoryGuard(map[string]float64{"anonymous": 1.0})

	// Recording against an unbudgeted profile must not panic and must
	// not affect budgeted profiles.
	guard.Record(context.Background(), "internal", 10.0)

	decision := guard.Evaluate(context.Background(), "anonymous", 0.5)
	if !decision.Allowed {
		t.Fatal("anonymous budget should be untouched")
	}
}
