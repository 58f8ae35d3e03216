package rules

import (
	"errors"
	"fmt"

	"github.com/arnavshah/secret-santa-api/pkg/models"
)

// Sentinel errors matched with errors.Is
var (
	ErrValidation = errors.New("invalid rules")
	ErrInfeasible = errors.New("no valid assignment")
)

// Validation reason codes
const (
	ReasonSelfTarget       = "self_target"
	ReasonMultipleMust     = "multiple_must"
	ReasonConflictingRules = "conflicting_rules"
	ReasonUnknownTarget    = "unknown_target"
	ReasonInvalidKind      = "invalid_kind"
	ReasonDuplicateID      = "duplicate_participant"
)

// Infeasibility reason codes
const (
	ReasonTooFewParticipants = "too_few_participants"
	ReasonNoCandidates       = "no_candidates"
	ReasonNoGivers           = "no_givers"
	ReasonMustCollision      = "must_collision"
	ReasonNoDerangement      = "no_derangement"
	ReasonBudgetExhausted    = "search_budget_exhausted"
)

// RuleError reports a contradictory rule set for one participant
type RuleError struct {
	OwnerID string
	Rule    models.Rule
	Reason  string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("participant %s: rule %s %s: %s", e.OwnerID, e.Rule.Kind, e.Rule.TargetID, e.Reason)
}

func (e *RuleError) Is(target error) bool {
	return target == ErrValidation
}

// InfeasibleError reports that no assignment satisfies the roster
type InfeasibleError struct {
	Reason        string
	ParticipantID string
}

func (e *InfeasibleError) Error() string {
	if e.ParticipantID != "" {
		return fmt.Sprintf("no valid assignment: %s (participant %s)", e.Reason, e.ParticipantID)
	}
	return "no valid assignment: " + e.Reason
}

func (e *InfeasibleError) Is(target error) bool {
	return target == ErrInfeasible
}

// Validate checks one participant's rule list. The first failure wins.
func Validate(ownerID string, rules []models.Rule) error {
	for _, r := range rules {
		if r.Kind != models.RuleMust && r.Kind != models.RuleMustNot {
			return &RuleError{OwnerID: ownerID, Rule: r, Reason: ReasonInvalidKind}
		}
		if r.TargetID == ownerID {
			return &RuleError{OwnerID: ownerID, Rule: r, Reason: ReasonSelfTarget}
		}
	}

	var must *models.Rule
	for i := range rules {
		if rules[i].Kind != models.RuleMust {
			continue
		}
		// Repeating the same must is harmless, a second target is not
		if must != nil && must.TargetID != rules[i].TargetID {
			return &RuleError{OwnerID: ownerID, Rule: rules[i], Reason: ReasonMultipleMust}
		}
		must = &rules[i]
	}

	if must != nil {
		for _, r := range rules {
			if r.Kind == models.RuleMustNot && r.TargetID == must.TargetID {
				return &RuleError{OwnerID: ownerID, Rule: r, Reason: ReasonConflictingRules}
			}
		}
	}

	return nil
}

// ValidateRoster validates every participant's rules and checks that all
// rule targets exist in the roster
func ValidateRoster(participants []models.Participant) error {
	ids := make(map[string]bool, len(participants))
	for _, p := range participants {
		if ids[p.ID] {
			return &RuleError{OwnerID: p.ID, Reason: ReasonDuplicateID}
		}
		ids[p.ID] = true
	}

	for _, p := range participants {
		if err := Validate(p.ID, p.Rules); err != nil {
			return err
		}
		for _, r := range p.Rules {
			if !ids[r.TargetID] {
				return &RuleError{OwnerID: p.ID, Rule: r, Reason: ReasonUnknownTarget}
			}
		}
	}
	return nil
}

// Candidates returns, for every giver, the receivers its rules still allow.
// A must rule narrows the set to its target.
func Candidates(participants []models.Participant) map[string][]string {
	out := make(map[string][]string, len(participants))
	for _, giver := range participants {
		excluded := map[string]bool{giver.ID: true}
		forced := ""
		for _, r := range giver.Rules {
			switch r.Kind {
			case models.RuleMust:
				forced = r.TargetID
			case models.RuleMustNot:
				excluded[r.TargetID] = true
			}
		}

		var cands []string
		if forced != "" {
			if !excluded[forced] {
				cands = []string{forced}
			}
		} else {
			for _, receiver := range participants {
				if !excluded[receiver.ID] {
					cands = append(cands, receiver.ID)
				}
			}
		}
		out[giver.ID] = cands
	}
	return out
}

// CheckFeasibility fails fast on rosters that obviously cannot be assigned:
// fewer than two participants, a giver without candidates, a receiver nobody
// may give to, or two givers forced onto the same receiver.
func CheckFeasibility(participants []models.Participant) error {
	if len(participants) < 2 {
		return &InfeasibleError{Reason: ReasonTooFewParticipants}
	}

	cands := Candidates(participants)
	givers := make(map[string]int, len(participants))
	for _, p := range participants {
		if len(cands[p.ID]) == 0 {
			return &InfeasibleError{Reason: ReasonNoCandidates, ParticipantID: p.ID}
		}
		for _, r := range cands[p.ID] {
			givers[r]++
		}
	}
	for _, p := range participants {
		if givers[p.ID] == 0 {
			return &InfeasibleError{Reason: ReasonNoGivers, ParticipantID: p.ID}
		}
	}

	forcedBy := make(map[string]string)
	for _, p := range participants {
		for _, r := range p.Rules {
			if r.Kind != models.RuleMust {
				continue
			}
			if other, ok := forcedBy[r.TargetID]; ok && other != p.ID {
				return &InfeasibleError{Reason: ReasonMustCollision, ParticipantID: r.TargetID}
			}
			forcedBy[r.TargetID] = p.ID
		}
	}
	return nil
}
