package assessment

import (
	"context"
	"fmt"
	"strings"

	"github.com/brightpath/onboardhub-backend/internal/pkg/logger"
)

// AttemptSummary is one prior attempt, for the decision prompt.
type AttemptSummary struct {
	Number int
	Score  int
	Passed bool
}

// PolicyInput is everything the decision maker sees about an attempt.
type PolicyInput struct {
	ModuleTitle   string
	Score         int
	Passed        bool
	AttemptNumber int
	Categories    CategoryScores
	WeakAreas     []string
	RemainingTime string
	History       []AttemptSummary
}

// Decision is what the platform does next for this learner and module.
type Decision struct {
	AllowRetry           bool     `json:"allowRetry"`
	RetriesGranted       int      `json:"retriesGranted"`
	RequiresRegeneration bool     `json:"requiresRegeneration"`
	UnlockedResources    []string `json:"unlockedResources"`
	LockModule           bool     `json:"lockModule"`
	ContactAdmin         bool     `json:"contactAdmin"`
	Message              string   `json:"message"`
	Recommendations      []string `json:"recommendations"`
	FromFallback         bool     `json:"fromFallback"`
}

// PolicyEngine decides retry, regeneration, and escalation after each
// attempt. A pass is decided locally; a fail is delegated to the model
// with a deterministic fallback, and the attempt ceiling is clamped on
// whatever comes back.
type PolicyEngine struct {
	ai  TextAI
	log *logger.Logger
	cfg Config
}

func NewPolicyEngine(ai TextAI, log *logger.Logger, cfg Config) *PolicyEngine {
	return &PolicyEngine{ai: ai, log: log.With("component", "PolicyEngine"), cfg: cfg}
}

func (p *PolicyEngine) Decide(ctx context.Context, in PolicyInput) Decision {
	if in.Passed {
		return Decision{
			UnlockedResources: []string{"quiz", "module", "chat"},
			Message: fmt.Sprintf("Great work! You passed %s with %d%%. The next module is unlocked.",
				strings.TrimSpace(in.ModuleTitle), in.Score),
		}
	}

	decision, err := p.decideViaModel(ctx, in)
	if err != nil {
		p.log.Warn("policy model call failed, using deterministic fallback",
			"module", in.ModuleTitle, "attempt", in.AttemptNumber, "error", err)
		decision = p.fallbackDecision(in)
	}
	return p.enforceCeiling(decision, in)
}

func (p *PolicyEngine) decideViaModel(ctx context.Context, in PolicyInput) (Decision, error) {
	system, user := promptPolicyDecision(in, p.cfg.PassThreshold, p.cfg.MaxAttempts)
	obj, err := p.ai.GenerateJSON(ctx, system, user, "policy_decision_v1", schemaPolicyDecisionV1())
	if err != nil {
		return Decision{}, err
	}

	retries, _ := anyInt(obj["retriesGranted"])
	if retries < 0 {
		retries = 0
	}
	return Decision{
		AllowRetry:           anyBool(obj["allowRetry"]),
		RetriesGranted:       retries,
		RequiresRegeneration: anyBool(obj["requiresRegeneration"]),
		UnlockedResources:    anyStringSlice(obj["unlockResources"]),
		LockModule:           anyBool(obj["lockModule"]),
		ContactAdmin:         anyBool(obj["contactAdmin"]),
		Message:              strings.TrimSpace(anyString(obj["message"])),
		Recommendations:      anyStringSlice(obj["recommendations"]),
	}, nil
}

// fallbackDecision reproduces the documented rules without a model: retry
// while attempts remain and the gap to the threshold is under 30 points,
// regeneration when the gap exceeds 20 points and attempts remain.
func (p *PolicyEngine) fallbackDecision(in PolicyInput) Decision {
	gap := p.cfg.PassThreshold - in.Score
	attemptsLeft := in.AttemptNumber < p.cfg.MaxAttempts

	d := Decision{
		AllowRetry:           attemptsLeft && gap < 30,
		RequiresRegeneration: gap > 20 && attemptsLeft,
		UnlockedResources:    []string{"module", "chat"},
		FromFallback:         true,
	}
	if d.AllowRetry {
		d.RetriesGranted = 1
		d.UnlockedResources = []string{"quiz", "module", "chat"}
		d.Message = fmt.Sprintf("You scored %d%%, just short of the %d%% needed. Review the material and try again.",
			in.Score, p.cfg.PassThreshold)
	} else if attemptsLeft {
		d.Message = fmt.Sprintf("You scored %d%%. Spend more time with the module content before your next attempt.",
			in.Score)
	} else {
		d.LockModule = true
		d.ContactAdmin = true
		d.UnlockedResources = []string{"chat"}
		d.Message = "You have used all quiz attempts for this module. An administrator will reach out to help you continue."
	}
	if len(in.WeakAreas) > 0 {
		d.Recommendations = append(d.Recommendations,
			"Focus your review on: "+strings.Join(in.WeakAreas, ", "))
	}
	d.Recommendations = append(d.Recommendations, "Re-read the module material before retrying.")
	return d
}

// enforceCeiling overrides retry fields once attempts are exhausted, no
// matter what the model said. Only retry, lock, and escalation fields are
// touched; message and recommendations pass through.
func (p *PolicyEngine) enforceCeiling(d Decision, in PolicyInput) Decision {
	if in.AttemptNumber < p.cfg.MaxAttempts {
		return d
	}
	if d.AllowRetry || d.RetriesGranted > 0 || !d.LockModule || !d.ContactAdmin {
		p.log.Info("clamping decision at attempt ceiling",
			"module", in.ModuleTitle, "attempt", in.AttemptNumber)
	}
	d.AllowRetry = false
	d.RetriesGranted = 0
	d.LockModule = true
	d.ContactAdmin = true
	return d
}
