package assessment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

func newTestPolicyEngine(ai TextAI) *PolicyEngine {
	return NewPolicyEngine(ai, logger.NewNop(), DefaultConfig())
}

func TestDecide_PassIsDecidedWithoutModel(t *testing.T) {
	fake := newFakeTextAI()

	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle:   "Security Basics",
		Score:         84,
		Passed:        true,
		AttemptNumber: 1,
	})

	if d.AllowRetry || d.LockModule || d.ContactAdmin {
		t.Fatalf("unexpected pass decision: %+v", d)
	}
	if len(d.UnlockedResources) != 3 {
		t.Fatalf("expected all resources unlocked, got %v", d.UnlockedResources)
	}
	if !strings.Contains(d.Message, "84%") {
		t.Fatalf("expected score in message, got %q", d.Message)
	}
	if n := fake.callCount("policy_decision_v1"); n != 0 {
		t.Fatalf("model calls: got %d want 0", n)
	}
}

func TestDecide_FailUsesModelDecision(t *testing.T) {
	fake := newFakeTextAI()
	fake.queue("policy_decision_v1", map[string]any{
		"allowRetry":           true,
		"retriesGranted":       float64(1),
		"requiresRegeneration": false,
		"unlockResources":      []any{"quiz", "chat"},
		"lockModule":           false,
		"contactAdmin":         false,
		"message":              "Almost there.",
		"recommendations":      []any{"review section 2"},
	}, nil)

	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 62, AttemptNumber: 1,
	})

	if !d.AllowRetry || d.RetriesGranted != 1 || d.FromFallback {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Message != "Almost there." || len(d.Recommendations) != 1 {
		t.Fatalf("expected model message carried through, got %+v", d)
	}
}

func TestDecide_ModelFailureFallsBackDeterministically(t *testing.T) {
	fake := newFakeTextAI()
	fake.queue("policy_decision_v1", nil, errors.New("upstream 500"))

	// Gap of 8 points on attempt 1: retry granted, no regeneration.
	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 62, AttemptNumber: 1,
		WeakAreas: []string{"short-answer"},
	})

	if !d.FromFallback {
		t.Fatalf("expected FromFallback=true")
	}
	if !d.AllowRetry || d.RetriesGranted != 1 || d.RequiresRegeneration {
		t.Fatalf("unexpected fallback decision: %+v", d)
	}
	if len(d.Recommendations) == 0 || !strings.Contains(d.Recommendations[0], "short-answer") {
		t.Fatalf("expected weak areas in recommendations, got %v", d.Recommendations)
	}
}

func TestDecide_FallbackLargeGapRequiresRegeneration(t *testing.T) {
	fake := newFakeTextAI()
	fake.queue("policy_decision_v1", nil, errors.New("down"))

	// Gap of 25: retry still allowed (gap < 30) and regeneration required
	// (gap > 20).
	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 45, AttemptNumber: 1,
	})
	if !d.AllowRetry || !d.RequiresRegeneration {
		t.Fatalf("unexpected decision for gap 25: %+v", d)
	}

	// Gap of 40: no retry at all.
	fake.queue("policy_decision_v1", nil, errors.New("down"))
	d = newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 30, AttemptNumber: 2,
	})
	if d.AllowRetry || d.LockModule {
		t.Fatalf("unexpected decision for gap 40 with attempts left: %+v", d)
	}
}

func TestDecide_CeilingClampsModelOutput(t *testing.T) {
	fake := newFakeTextAI()
	// Model tries to grant a fourth attempt.
	fake.queue("policy_decision_v1", map[string]any{
		"allowRetry":           true,
		"retriesGranted":       float64(2),
		"requiresRegeneration": true,
		"unlockResources":      []any{"quiz"},
		"lockModule":           false,
		"contactAdmin":         false,
		"message":              "One more try!",
		"recommendations":      []any{"keep going"},
	}, nil)

	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 55, AttemptNumber: 3,
	})

	if d.AllowRetry || d.RetriesGranted != 0 {
		t.Fatalf("expected retry clamped at ceiling, got %+v", d)
	}
	if !d.LockModule || !d.ContactAdmin {
		t.Fatalf("expected lock and escalation at ceiling, got %+v", d)
	}
	// Message and recommendations survive the clamp.
	if d.Message != "One more try!" || len(d.Recommendations) != 1 {
		t.Fatalf("expected message preserved, got %+v", d)
	}
}

func TestDecide_FallbackAtCeilingLocksAndEscalates(t *testing.T) {
	fake := newFakeTextAI()
	fake.queue("policy_decision_v1", nil, errors.New("down"))

	d := newTestPolicyEngine(fake).Decide(context.Background(), PolicyInput{
		ModuleTitle: "m", Score: 50, AttemptNumber: 3,
	})

	if d.AllowRetry || !d.LockModule || !d.ContactAdmin {
		t.Fatalf("unexpected exhausted decision: %+v", d)
	}
	if !strings.Contains(d.Message, "administrator") {
		t.Fatalf("expected escalation message, got %q", d.Message)
	}
}
