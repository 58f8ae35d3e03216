package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/google/uuid"
)

// Parse error keys
const (
	KeyEmptyName          = "empty_name"
	KeyInvalidName        = "invalid_name"
	KeyDuplicateName      = "duplicate_name"
	KeyInvalidRuleFormat  = "invalid_rule_format"
	KeyUnknownParticipant = "unknown_participant"
)

var ruleToken = regexp.MustCompile(`^([=!])(.+)$`)

// ParseError reports a malformed roster line
type ParseError struct {
	Line   int               `json:"line"`
	Key    string            `json:"key"`
	Values map[string]string `json:"values,omitempty"`
}

func (e *ParseError) Error() string {
	if len(e.Values) == 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Key)
	}
	var parts []string
	for _, k := range []string{"name", "rule"} {
		if v, ok := e.Values[k]; ok {
			parts = append(parts, k+"="+v)
		}
	}
	return fmt.Sprintf("line %d: %s (%s)", e.Line, e.Key, strings.Join(parts, ", "))
}

type parsedLine struct {
	line   int
	name   string
	email  string
	tokens []string
}

// Parse reads the roster text format: one `name,email,rules` line per
// participant where rules is a `;` separated list of `=Name` (must give to)
// and `!Name` (must not give to). Participants whose name matches one in
// existing keep their id, and their email and hint when the line has none.
func Parse(input string, existing *Roster) (*Roster, error) {
	var lines []parsedLine
	for i, raw := range strings.Split(input, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		columns := strings.Split(raw, ",")
		for j := range columns {
			columns[j] = strings.TrimSpace(columns[j])
		}
		pl := parsedLine{line: i + 1, name: columns[0]}
		if len(columns) > 1 {
			pl.email = columns[1]
		}
		if pl.name == "" {
			return nil, &ParseError{Line: pl.line, Key: KeyEmptyName}
		}
		if _, err := CheckName(pl.name); err != nil {
			return nil, &ParseError{Line: pl.line, Key: KeyInvalidName, Values: map[string]string{"name": pl.name}}
		}
		if len(columns) > 2 {
			for _, tok := range strings.Split(strings.Join(columns[2:], ","), ";") {
				if tok = strings.TrimSpace(tok); tok != "" {
					pl.tokens = append(pl.tokens, tok)
				}
			}
		}
		lines = append(lines, pl)
	}

	out := New()
	nameToID := make(map[string]string, len(lines))
	for _, pl := range lines {
		if _, dup := nameToID[pl.name]; dup {
			return nil, &ParseError{Line: pl.line, Key: KeyDuplicateName, Values: map[string]string{"name": pl.name}}
		}

		p := models.Participant{Name: pl.name, Email: pl.email}
		if prev, ok := existingByName(existing, pl.name); ok {
			p.ID = prev.ID
			p.Hint = prev.Hint
			if p.Email == "" {
				p.Email = prev.Email
			}
		} else {
			p.ID = uuid.NewString()
		}
		nameToID[pl.name] = p.ID
		out.insert(p)
	}

	for _, pl := range lines {
		id := nameToID[pl.name]
		var rs []models.Rule
		for _, tok := range pl.tokens {
			m := ruleToken.FindStringSubmatch(tok)
			if m == nil || strings.TrimSpace(m[2]) == "" {
				return nil, &ParseError{Line: pl.line, Key: KeyInvalidRuleFormat, Values: map[string]string{"rule": tok}}
			}
			target := strings.TrimSpace(m[2])
			targetID, ok := nameToID[target]
			if !ok {
				return nil, &ParseError{Line: pl.line, Key: KeyUnknownParticipant, Values: map[string]string{"name": target}}
			}

			kind := models.RuleMustNot
			if m[1] == "=" {
				kind = models.RuleMust
			}
			rs = append(rs, models.Rule{Kind: kind, TargetID: targetID})
		}

		if err := rules.Validate(id, rs); err != nil {
			var ruleErr *rules.RuleError
			if errors.As(err, &ruleErr) {
				return nil, &ParseError{Line: pl.line, Key: ruleErr.Reason}
			}
			return nil, err
		}
		out.byID[id].Rules = rs
	}

	return out, nil
}

func existingByName(existing *Roster, name string) (*models.Participant, bool) {
	if existing == nil {
		return nil, false
	}
	return existing.ByName(name)
}

// Format writes the roster back to its text format. Rules whose target is no
// longer in the roster are skipped.
func Format(r *Roster) string {
	var b strings.Builder
	for _, id := range r.order {
		p := r.byID[id]
		var tokens []string
		for _, rule := range p.Rules {
			target, ok := r.byID[rule.TargetID]
			if !ok {
				continue
			}
			op := "!"
			if rule.Kind == models.RuleMust {
				op = "="
			}
			tokens = append(tokens, op+target.Name)
		}
		b.WriteString(strings.Join([]string{p.Name, p.Email, strings.Join(tokens, "; ")}, ","))
		b.WriteString("\n")
	}
	return b.String()
}
