package roster

import (
	"errors"
	"testing"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
)

func TestParse(t *testing.T) {
	input := "Alice, alice@example.com, =Bob; !Carol\n\n  \nBob,,\nCarol\n"

	r, err := Parse(input, nil)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Expected 3 participants, got %d", r.Len())
	}

	ps := r.Participants()
	if ps[0].Name != "Alice" || ps[0].Email != "alice@example.com" {
		t.Errorf("Unexpected first participant: %+v", ps[0])
	}
	if len(ps[0].Rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(ps[0].Rules))
	}
	if ps[0].Rules[0] != (models.Rule{Kind: models.RuleMust, TargetID: ps[1].ID}) {
		t.Errorf("Expected must rule on Bob, got %+v", ps[0].Rules[0])
	}
	if ps[0].Rules[1] != (models.Rule{Kind: models.RuleMustNot, TargetID: ps[2].ID}) {
		t.Errorf("Expected mustNot rule on Carol, got %+v", ps[0].Rules[1])
	}
	if ps[1].Email != "" || len(ps[1].Rules) != 0 {
		t.Errorf("Expected Bob without email or rules, got %+v", ps[1])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantKey  string
	}{
		{"empty name", "Alice\n, bob@example.com", 2, KeyEmptyName},
		{"duplicate name", "Alice\nBob\nAlice", 3, KeyDuplicateName},
		{"separator in name", "Alice\nSmith; John\nBob", 2, KeyInvalidName},
		{"bad token", "Alice,,Bob\nBob", 1, KeyInvalidRuleFormat},
		{"empty target", "Alice,,= \nBob", 1, KeyInvalidRuleFormat},
		{"unknown target", "Alice,,!Zed\nBob", 1, KeyUnknownParticipant},
		{"self target", "Alice,,!Alice\nBob", 1, rules.ReasonSelfTarget},
		{"two musts", "Alice,,=Bob;=Carol\nBob\nCarol", 1, rules.ReasonMultipleMust},
		{"must and mustNot", "Alice\nBob,,=Alice;!Alice", 2, rules.ReasonConflictingRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, nil)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected ParseError, got %v", err)
			}
			if perr.Line != tt.wantLine || perr.Key != tt.wantKey {
				t.Errorf("Expected line %d key %s, got line %d key %s", tt.wantLine, tt.wantKey, perr.Line, perr.Key)
			}
		})
	}
}

func TestParse_KeepsExistingIdentity(t *testing.T) {
	first, err := Parse("Alice,alice@example.com\nBob", nil)
	if err != nil {
		t.Fatal(err)
	}
	alice, _ := first.ByName("Alice")
	if err := first.SetHint(alice.ID, "books"); err != nil {
		t.Fatal(err)
	}

	second, err := Parse("Bob\nAlice\nCarol", first)
	if err != nil {
		t.Fatal(err)
	}
	again, ok := second.ByName("Alice")
	if !ok {
		t.Fatal("Alice missing after reparse")
	}
	if again.ID != alice.ID {
		t.Errorf("Expected Alice to keep id %s, got %s", alice.ID, again.ID)
	}
	if again.Email != "alice@example.com" || again.Hint != "books" {
		t.Errorf("Expected email and hint carried over, got %+v", again)
	}
	carol, _ := second.ByName("Carol")
	if carol.ID == alice.ID {
		t.Errorf("Expected a fresh id for Carol")
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	input := "Alice,alice@example.com,=Bob; !Carol\nBob,,\nCarol,,!Alice\n"

	r, err := Parse(input, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := Format(r); got != input {
		t.Errorf("Expected %q, got %q", input, got)
	}

	again, err := Parse(Format(r), r)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range again.Participants() {
		if p.ID != r.Participants()[i].ID {
			t.Errorf("Expected ids to survive a round trip")
		}
	}
}

func TestRoster_Edits(t *testing.T) {
	r := New()
	a, _ := r.Add("Alice", "")
	b, _ := r.Add("Bob", "bob@example.com")
	c, _ := r.Add("Carol", "")

	if _, err := r.Add("  ", ""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
	if _, err := r.Add("Smith, John", ""); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}
	if err := r.Rename(c.ID, "Carol;Bob"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName for rename, got %v", err)
	}

	if err := r.SetRules(a.ID, []models.Rule{{Kind: models.RuleMustNot, TargetID: c.ID}}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetRules(b.ID, []models.Rule{{Kind: models.RuleMust, TargetID: b.ID}}); !errors.Is(err, rules.ErrValidation) {
		t.Errorf("Expected validation error for self rule, got %v", err)
	}
	if err := r.SetRules(b.ID, []models.Rule{{Kind: models.RuleMust, TargetID: "missing"}}); !errors.Is(err, rules.ErrValidation) {
		t.Errorf("Expected validation error for unknown target, got %v", err)
	}

	if err := r.Rename(c.ID, "Caroline"); err != nil {
		t.Fatal(err)
	}
	if got, _ := r.Get(c.ID); got.Name != "Caroline" {
		t.Errorf("Expected rename to stick, got %s", got.Name)
	}
	if err := r.Rename("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if err := r.Remove(c.ID); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Errorf("Expected 2 participants, got %d", r.Len())
	}
	if got, _ := r.Get(a.ID); len(got.Rules) != 0 {
		t.Errorf("Expected rules targeting removed participant to be dropped, got %+v", got.Rules)
	}
}

func TestFromParticipants_DuplicateID(t *testing.T) {
	_, err := FromParticipants([]models.Participant{{ID: "1", Name: "A"}, {ID: "1", Name: "B"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("Expected ErrDuplicateID, got %v", err)
	}
}
