package label

import (
	"math/rand"
	"testing"

	"github.com/decisionloop/feedback-controller/internal/decision"
)

func TestAdjustIrreversibleFailure(t *testing.T) {
	outcome := decision.Outcome{Success: false, RegretScore: 0.8, RecoveryTimeDays: 30, SecondaryDamage: true}
	ctx := Context{Irreversibility: 0.9, RulesFailed: true}

	got := Adjust(Default(), outcome, ctx, DefaultPolicy())

	if got.Warning <= 1.0 {
		t.Errorf("expected warning weight above 1.0, got %v", got.Warning)
	}
	if got.Principle <= 1.0 {
		t.Errorf("expected principle weight above 1.0, got %v", got.Principle)
	}
	if got.Rule >= 1.0 {
		t.Errorf("expected rule weight below 1.0, got %v", got.Rule)
	}
	if !got.InBounds() {
		t.Errorf("label escaped bounds: %+v", got)
	}
}

func TestAdjustHighRegretAdvice(t *testing.T) {
	outcome := decision.Outcome{Success: true, RegretScore: 0.7}
	ctx := Context{IsAdviceDriven: true}

	got := Adjust(Default(), outcome, ctx, DefaultPolicy())
	if got.Advice >= 1.0 {
		t.Errorf("expected advice weight below 1.0, got %v", got.Advice)
	}
	// Success with no recovery flag leaves principle alone.
	if got.Principle != 1.0 {
		t.Errorf("expected principle untouched, got %v", got.Principle)
	}
}

func TestAdjustSuccessfulRecovery(t *testing.T) {
	outcome := decision.Outcome{Success: true, RegretScore: 0.05}
	ctx := Context{RecoverySucceeded: true}

	got := Adjust(Default(), outcome, ctx, DefaultPolicy())
	if got.Principle != 1.05 {
		t.Errorf("expected principle 1.05, got %v", got.Principle)
	}
}

func TestAdjustNoRulesFire(t *testing.T) {
	outcome := decision.Outcome{Success: true, RegretScore: 0.1}
	got := Adjust(Default(), outcome, Context{}, DefaultPolicy())
	if got != Default() {
		t.Errorf("expected default label when no rule fires, got %+v", got)
	}
}

func TestAdjustDeterminism(t *testing.T) {
	outcome := decision.Outcome{Success: false, RegretScore: 0.9}
	ctx := Context{Irreversibility: 0.95, RulesFailed: true, IsAdviceDriven: true}
	policy := DefaultPolicy()

	a := Adjust(Default(), outcome, ctx, policy)
	b := Adjust(Default(), outcome, ctx, policy)
	if a != b {
		t.Fatalf("same inputs produced different labels: %+v vs %+v", a, b)
	}
}

// Randomized inputs never escape [MinWeight, MaxWeight], including
// bases already sitting at the bounds.
func TestAdjustBoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	randWeight := func() float64 {
		return MinWeight + rng.Float64()*(MaxWeight-MinWeight)
	}

	for i := 0; i < 2000; i++ {
		base := TrainingLabel{
			Principle: randWeight(),
			Rule:      randWeight(),
			Warning:   randWeight(),
			Claim:     randWeight(),
			Advice:    randWeight(),
		}
		// Force the bounds themselves into rotation.
		if i%7 == 0 {
			base.Warning = MaxWeight
			base.Rule = MinWeight
		}
		outcome := decision.Outcome{
			Success:          rng.Intn(2) == 0,
			RegretScore:      rng.Float64(),
			RecoveryTimeDays: rng.Intn(90),
			SecondaryDamage:  rng.Intn(2) == 0,
		}
		ctx := Context{
			Irreversibility:   rng.Float64(),
			RulesFailed:       rng.Intn(2) == 0,
			IsAdviceDriven:    rng.Intn(2) == 0,
			RecoverySucceeded: rng.Intn(2) == 0,
		}

		got := Adjust(base, outcome, ctx, DefaultPolicy())
		if !got.InBounds() {
			t.Fatalf("iteration %d escaped bounds: %+v (base %+v outcome %+v ctx %+v)",
				i, got, base, outcome, ctx)
		}
	}
}

func TestClamped(t *testing.T) {
	l := TrainingLabel{Principle: 2.0, Rule: 0.1, Warning: 1.0, Claim: 1.3, Advice: 0.7}
	got := l.Clamped()
	if got.Principle != MaxWeight {
		t.Errorf("expected principle clamped to %v, got %v", MaxWeight, got.Principle)
	}
	if got.Rule != MinWeight {
		t.Errorf("expected rule clamped to %v, got %v", MinWeight, got.Rule)
	}
	if got.Warning != 1.0 || got.Claim != 1.3 || got.Advice != 0.7 {
		t.Errorf("in-bounds weights must pass through, got %+v", got)
	}
}
