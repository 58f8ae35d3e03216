package matcher

import (
	"math/rand"
	"sort"
	"time"

	"github.com/arnavshah/secret-santa-api/pkg/fingerprint"
	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/google/uuid"
)

// DefaultMaxSteps bounds the number of candidate tries of one search
const DefaultMaxSteps = 200000

// Matcher handles the logic of assigning every giver exactly one receiver
type Matcher struct {
	Participants map[string]*models.Participant
	Order        []string
	Assigned     map[string]string // giver ID -> receiver ID
	Steps        int
	MaxSteps     int

	rng      *rand.Rand
	prefixed map[string]bool // receivers already taken by a must edge
}

// Option configures a Matcher
type Option func(*Matcher)

// WithRand replaces the time-seeded random source
func WithRand(r *rand.Rand) Option {
	return func(m *Matcher) { m.rng = r }
}

// WithMaxSteps sets the search budget. Values <= 0 keep the default.
func WithMaxSteps(steps int) Option {
	return func(m *Matcher) {
		if steps > 0 {
			m.MaxSteps = steps
		}
	}
}

// NewMatcher creates a new matcher instance over the roster, keeping its order
func NewMatcher(participants []models.Participant, opts ...Option) *Matcher {
	m := &Matcher{
		Participants: make(map[string]*models.Participant, len(participants)),
		Order:        make([]string, 0, len(participants)),
		Assigned:     make(map[string]string, len(participants)),
		MaxSteps:     DefaultMaxSteps,
		prefixed:     make(map[string]bool),
	}
	for i := range participants {
		p := &participants[i]
		m.Participants[p.ID] = p
		m.Order = append(m.Order, p.ID)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return m
}

// Prefill commits the edges fixed by must rules before the search starts
func (m *Matcher) Prefill() error {
	for _, giverID := range m.Order {
		for _, r := range m.Participants[giverID].Rules {
			if r.Kind != models.RuleMust || m.Assigned[giverID] == r.TargetID {
				continue
			}
			if m.prefixed[r.TargetID] {
				return &rules.InfeasibleError{Reason: rules.ReasonMustCollision, ParticipantID: r.TargetID}
			}
			m.Assigned[giverID] = r.TargetID
			m.prefixed[r.TargetID] = true
		}
	}
	return nil
}

// Allows checks if a giver may be assigned to a receiver
func (m *Matcher) Allows(giver *models.Participant, receiverID string) bool {
	if giver.ID == receiverID {
		return false
	}
	for _, r := range giver.Rules {
		if r.Kind == models.RuleMustNot && r.TargetID == receiverID {
			return false
		}
	}
	return true
}

// candidates returns the shuffled receivers still open to a giver
func (m *Matcher) candidates(giver *models.Participant) []string {
	var out []string
	for _, id := range m.Order {
		if !m.prefixed[id] && m.Allows(giver, id) {
			out = append(out, id)
		}
	}
	m.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// AssignBacktrack assigns every giver without a must edge using randomized
// backtracking. Givers are shuffled, then the most constrained go first.
func (m *Matcher) AssignBacktrack() error {
	var free []string
	for _, id := range m.Order {
		if _, ok := m.Assigned[id]; !ok {
			free = append(free, id)
		}
	}
	m.rng.Shuffle(len(free), func(i, j int) {
		free[i], free[j] = free[j], free[i]
	})

	cands := make(map[string][]string, len(free))
	for _, id := range free {
		cands[id] = m.candidates(m.Participants[id])
	}
	sort.SliceStable(free, func(i, j int) bool {
		return len(cands[free[i]]) < len(cands[free[j]])
	})

	used := make(map[string]bool, len(m.Order))
	for id := range m.prefixed {
		used[id] = true
	}

	next := make([]int, len(free))
	chosen := make([]string, len(free))
	for i := 0; i < len(free); {
		list := cands[free[i]]
		found := false
		for next[i] < len(list) {
			r := list[next[i]]
			next[i]++
			m.Steps++
			if m.Steps > m.MaxSteps {
				return &rules.InfeasibleError{Reason: rules.ReasonBudgetExhausted}
			}
			if used[r] {
				continue
			}
			used[r] = true
			chosen[i] = r
			found = true
			break
		}
		if found {
			i++
			continue
		}

		// Exhausted this giver, step back and try the previous one's next candidate
		next[i] = 0
		i--
		if i < 0 {
			return &rules.InfeasibleError{Reason: rules.ReasonNoDerangement}
		}
		used[chosen[i]] = false
		chosen[i] = ""
	}

	for i, giverID := range free {
		m.Assigned[giverID] = chosen[i]
	}
	return nil
}

// Result builds the assignment with fresh link and session identifiers
func (m *Matcher) Result(participants []models.Participant) *models.GeneratedAssignment {
	out := &models.GeneratedAssignment{
		Pairings:    make([]models.Pairing, 0, len(m.Order)),
		Fingerprint: fingerprint.Compute(participants),
		SessionID:   uuid.NewString(),
	}
	for _, giverID := range m.Order {
		out.Pairings = append(out.Pairings, models.Pairing{
			GiverID:    giverID,
			ReceiverID: m.Assigned[giverID],
			LinkID:     uuid.NewString(),
		})
	}
	return out
}

// Generate validates the roster and produces a complete derangement honoring
// every rule. Rule problems come back as *rules.RuleError, unsatisfiable
// rosters and exhausted searches as *rules.InfeasibleError.
func Generate(participants []models.Participant, opts ...Option) (*models.GeneratedAssignment, error) {
	if err := rules.ValidateRoster(participants); err != nil {
		return nil, err
	}
	if err := rules.CheckFeasibility(participants); err != nil {
		return nil, err
	}

	m := NewMatcher(participants, opts...)
	if err := m.Prefill(); err != nil {
		return nil, err
	}
	if err := m.AssignBacktrack(); err != nil {
		return nil, err
	}
	return m.Result(participants), nil
}
