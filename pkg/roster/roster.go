package roster

import (
	"errors"
	"strings"

	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("participant not found")
	ErrEmptyName   = errors.New("participant name is required")
	ErrDuplicateID = errors.New("duplicate participant id")
	ErrInvalidName = errors.New("participant name cannot contain ',' or ';'")
)

// CheckName trims a display name and rejects names the text format cannot
// carry: empty ones and ones holding a column or rule separator.
func CheckName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if strings.ContainsAny(name, ",;") {
		return "", ErrInvalidName
	}
	return name, nil
}

// Roster is an id-keyed arena of participants that remembers insertion order.
// Rules reference ids, so renames never break them.
type Roster struct {
	byID  map[string]*models.Participant
	order []string
}

// New creates an empty roster
func New() *Roster {
	return &Roster{byID: make(map[string]*models.Participant)}
}

// FromParticipants builds a roster from an existing participant list
func FromParticipants(participants []models.Participant) (*Roster, error) {
	r := New()
	for _, p := range participants {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, ok := r.byID[p.ID]; ok {
			return nil, ErrDuplicateID
		}
		if _, err := CheckName(p.Name); err != nil {
			return nil, err
		}
		p.Rules = append([]models.Rule(nil), p.Rules...)
		r.insert(p)
	}
	return r, nil
}

func (r *Roster) insert(p models.Participant) *models.Participant {
	stored := p
	r.byID[p.ID] = &stored
	r.order = append(r.order, p.ID)
	return &stored
}

// Len returns the number of participants
func (r *Roster) Len() int {
	return len(r.order)
}

// Add creates a participant with a fresh id
func (r *Roster) Add(name, email string) (*models.Participant, error) {
	name, err := CheckName(name)
	if err != nil {
		return nil, err
	}
	return r.insert(models.Participant{
		ID:    uuid.NewString(),
		Name:  name,
		Email: strings.TrimSpace(email),
	}), nil
}

// Get returns the participant with the given id
func (r *Roster) Get(id string) (*models.Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// ByName returns the first participant in roster order carrying the name
func (r *Roster) ByName(name string) (*models.Participant, bool) {
	for _, id := range r.order {
		if p := r.byID[id]; p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Rename changes a participant's display name, keeping its id
func (r *Roster) Rename(id, name string) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	name, err := CheckName(name)
	if err != nil {
		return err
	}
	p.Name = name
	return nil
}

// SetEmail changes a participant's contact address
func (r *Roster) SetEmail(id, email string) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Email = strings.TrimSpace(email)
	return nil
}

// SetHint changes the hint shown to the participant's giver
func (r *Roster) SetHint(id, hint string) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.Hint = hint
	return nil
}

// SetRules replaces a participant's rules after validating them
func (r *Roster) SetRules(id string, rs []models.Rule) error {
	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := rules.Validate(id, rs); err != nil {
		return err
	}
	for _, rule := range rs {
		if _, ok := r.byID[rule.TargetID]; !ok {
			return &rules.RuleError{OwnerID: id, Rule: rule, Reason: rules.ReasonUnknownTarget}
		}
	}
	p.Rules = append([]models.Rule(nil), rs...)
	return nil
}

// Remove deletes a participant and every rule that targets it
func (r *Roster) Remove(id string) error {
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	for _, p := range r.byID {
		kept := p.Rules[:0]
		for _, rule := range p.Rules {
			if rule.TargetID != id {
				kept = append(kept, rule)
			}
		}
		p.Rules = kept
	}
	return nil
}

// Participants returns a copy of the roster in insertion order
func (r *Roster) Participants() []models.Participant {
	out := make([]models.Participant, 0, len(r.order))
	for _, id := range r.order {
		p := *r.byID[id]
		p.Rules = append([]models.Rule(nil), p.Rules...)
		out = append(out, p)
	}
	return out
}
