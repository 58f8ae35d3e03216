package matcher

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
)

func roster(names ...string) []models.Participant {
	out := make([]models.Participant, len(names))
	for i, n := range names {
		out[i] = models.Participant{ID: n, Name: n}
	}
	return out
}

func addRule(ps []models.Participant, owner string, kind models.RuleKind, target string) {
	for i := range ps {
		if ps[i].ID == owner {
			ps[i].Rules = append(ps[i].Rules, models.Rule{Kind: kind, TargetID: target})
		}
	}
}

// checkAssignment verifies the result is a rule-respecting derangement
func checkAssignment(t *testing.T, ps []models.Participant, a *models.GeneratedAssignment) {
	t.Helper()

	if len(a.Pairings) != len(ps) {
		t.Fatalf("Expected %d pairings, got %d", len(ps), len(a.Pairings))
	}

	givers := make(map[string]bool)
	receivers := make(map[string]bool)
	links := make(map[string]bool)
	edges := make(map[string]string)
	for _, p := range a.Pairings {
		if p.GiverID == p.ReceiverID {
			t.Errorf("%s is paired with themselves", p.GiverID)
		}
		if givers[p.GiverID] {
			t.Errorf("giver %s appears twice", p.GiverID)
		}
		if receivers[p.ReceiverID] {
			t.Errorf("receiver %s appears twice", p.ReceiverID)
		}
		if p.LinkID == "" || links[p.LinkID] {
			t.Errorf("link id %q is empty or reused", p.LinkID)
		}
		givers[p.GiverID] = true
		receivers[p.ReceiverID] = true
		links[p.LinkID] = true
		edges[p.GiverID] = p.ReceiverID
	}

	for _, p := range ps {
		if !givers[p.ID] || !receivers[p.ID] {
			t.Errorf("%s missing from givers or receivers", p.ID)
		}
		for _, r := range p.Rules {
			switch r.Kind {
			case models.RuleMust:
				if edges[p.ID] != r.TargetID {
					t.Errorf("%s must give to %s, got %s", p.ID, r.TargetID, edges[p.ID])
				}
			case models.RuleMustNot:
				if edges[p.ID] == r.TargetID {
					t.Errorf("%s must not give to %s", p.ID, r.TargetID)
				}
			}
		}
	}

	if a.SessionID == "" || a.Fingerprint == "" {
		t.Errorf("Expected session id and fingerprint to be set")
	}
}

func TestGenerate_NoRules(t *testing.T) {
	ps := roster("Alice", "Bob", "Carol")

	for i := 0; i < 50; i++ {
		a, err := Generate(ps)
		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		checkAssignment(t, ps, a)
	}
}

func TestGenerate_PairSwaps(t *testing.T) {
	ps := roster("A", "B")

	a, err := Generate(ps)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	checkAssignment(t, ps, a)
}

func TestGenerate_MustRules(t *testing.T) {
	ps := roster("A", "B", "C", "D")
	addRule(ps, "A", models.RuleMust, "C")
	addRule(ps, "B", models.RuleMust, "A")
	addRule(ps, "C", models.RuleMustNot, "B")

	for i := 0; i < 50; i++ {
		a, err := Generate(ps)
		if err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
		checkAssignment(t, ps, a)
	}
}

// Rules are drawn from a hidden derangement so every roster is satisfiable
func TestGenerate_RandomSatisfiableRosters(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 300; iter++ {
		n := 3 + rng.Intn(8)
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("p%d", i)
		}
		ps := roster(names...)

		// Sattolo's algorithm yields a single cycle, hence no fixed points
		hidden := make([]int, n)
		for i := range hidden {
			hidden[i] = i
		}
		for i := n - 1; i > 0; i-- {
			j := rng.Intn(i)
			hidden[i], hidden[j] = hidden[j], hidden[i]
		}

		for g := 0; g < n; g++ {
			target := names[hidden[g]]
			if rng.Intn(5) == 0 {
				addRule(ps, names[g], models.RuleMust, target)
				continue
			}
			for k := 0; k < 2; k++ {
				other := rng.Intn(n)
				if other != g && names[other] != target {
					addRule(ps, names[g], models.RuleMustNot, names[other])
				}
			}
		}

		a, err := Generate(ps, WithRand(rand.New(rand.NewSource(int64(iter)))))
		if err != nil {
			t.Fatalf("iteration %d: expected success, got %v", iter, err)
		}
		checkAssignment(t, ps, a)
	}
}

func TestGenerate_TwoMustRulesRejected(t *testing.T) {
	ps := roster("A", "B", "C")
	addRule(ps, "A", models.RuleMust, "B")
	addRule(ps, "A", models.RuleMust, "C")

	_, err := Generate(ps)
	var ruleErr *rules.RuleError
	if !errors.As(err, &ruleErr) || ruleErr.Reason != rules.ReasonMultipleMust {
		t.Fatalf("Expected multiple_must validation error, got %v", err)
	}
}

func TestGenerate_IsolatedParticipantInfeasible(t *testing.T) {
	ps := roster("A", "B", "C", "D")
	for _, other := range []string{"B", "C", "D"} {
		addRule(ps, "A", models.RuleMustNot, other)
		addRule(ps, other, models.RuleMustNot, "A")
	}

	_, err := Generate(ps)
	if !errors.Is(err, rules.ErrInfeasible) {
		t.Fatalf("Expected infeasible, got %v", err)
	}
}

func TestGenerate_PairWithMustNotInfeasible(t *testing.T) {
	ps := roster("A", "B")
	addRule(ps, "A", models.RuleMustNot, "B")

	_, err := Generate(ps)
	if !errors.Is(err, rules.ErrInfeasible) {
		t.Fatalf("Expected infeasible, got %v", err)
	}
}

func TestGenerate_TooFewParticipants(t *testing.T) {
	_, err := Generate(roster("Solo"))
	var inf *rules.InfeasibleError
	if !errors.As(err, &inf) || inf.Reason != rules.ReasonTooFewParticipants {
		t.Fatalf("Expected too_few_participants, got %v", err)
	}
}

// A and B can only give to C. The pre-check passes, the search must not.
func hallViolation() []models.Participant {
	ps := roster("A", "B", "C", "D")
	addRule(ps, "A", models.RuleMustNot, "B")
	addRule(ps, "A", models.RuleMustNot, "D")
	addRule(ps, "B", models.RuleMustNot, "A")
	addRule(ps, "B", models.RuleMustNot, "D")
	return ps
}

func TestGenerate_SearchExhaustsSpace(t *testing.T) {
	_, err := Generate(hallViolation())
	var inf *rules.InfeasibleError
	if !errors.As(err, &inf) || inf.Reason != rules.ReasonNoDerangement {
		t.Fatalf("Expected no_derangement, got %v", err)
	}
}

func TestGenerate_BudgetExhausted(t *testing.T) {
	_, err := Generate(hallViolation(), WithMaxSteps(1))
	var inf *rules.InfeasibleError
	if !errors.As(err, &inf) || inf.Reason != rules.ReasonBudgetExhausted {
		t.Fatalf("Expected search_budget_exhausted, got %v", err)
	}
}

func TestGenerate_PathologicalTerminates(t *testing.T) {
	// Half the roster may only give inside a set one smaller than itself
	const n = 40
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("p%02d", i)
	}
	ps := roster(names...)
	for g := 0; g < n/2; g++ {
		for r := 0; r < n; r++ {
			if r != g && (r < n/2 || r >= n-1) {
				addRule(ps, names[g], models.RuleMustNot, names[r])
			}
		}
	}

	const budget = 20000
	m := NewMatcher(ps, WithMaxSteps(budget))
	if err := m.Prefill(); err != nil {
		t.Fatalf("Unexpected prefill error: %v", err)
	}
	err := m.AssignBacktrack()
	if !errors.Is(err, rules.ErrInfeasible) {
		t.Fatalf("Expected infeasible, got %v", err)
	}
	if m.Steps > budget+1 {
		t.Errorf("Expected search to stop within %d steps, took %d", budget, m.Steps)
	}
}

func TestAllows(t *testing.T) {
	ps := roster("A", "B", "C")
	addRule(ps, "A", models.RuleMustNot, "B")
	m := NewMatcher(ps)

	a := m.Participants["A"]
	if m.Allows(a, "A") {
		t.Errorf("self pairing must not be allowed")
	}
	if m.Allows(a, "B") {
		t.Errorf("mustNot target must not be allowed")
	}
	if !m.Allows(a, "C") {
		t.Errorf("C should be allowed")
	}
}

func TestGenerate_DifferentRunsDifferentIdentifiers(t *testing.T) {
	ps := roster("A", "B", "C")
	first, err := Generate(ps)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Generate(ps)
	if err != nil {
		t.Fatal(err)
	}
	if first.SessionID == second.SessionID {
		t.Errorf("Expected a fresh session id per run")
	}
	if first.Fingerprint != second.Fingerprint {
		t.Errorf("Expected identical rosters to share a fingerprint")
	}
}
