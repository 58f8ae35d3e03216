package models

// RuleKind is the direction of a participant rule
type RuleKind string

const (
	// RuleMust forces the owner to give to the target
	RuleMust RuleKind = "must"
	// RuleMustNot forbids the owner from giving to the target
	RuleMustNot RuleKind = "mustNot"
)

// Rule is a directed constraint owned by one participant
type Rule struct {
	Kind     RuleKind `json:"type"`
	TargetID string   `json:"target_participant_id"`
}

// Participant represents a member of the gift exchange
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Hint  string `json:"hint,omitempty"`
	Rules []Rule `json:"rules"`
}

// Pairing represents a giver-receiver edge of one generated assignment
type Pairing struct {
	GiverID    string `json:"giver_id"`
	ReceiverID string `json:"receiver_id"`
	LinkID     string `json:"link_id"`
}

// GeneratedAssignment is the full result of one generator run
type GeneratedAssignment struct {
	Pairings    []Pairing `json:"pairings"`
	Fingerprint string    `json:"fingerprint"`
	SessionID   string    `json:"session_id"`
}

// ReceiverData is the structured plaintext sealed into a link when a hint is present
type ReceiverData struct {
	Name string `json:"name"`
	Hint string `json:"hint,omitempty"`
}

// RosterInput is the data structure shared by the roster endpoints
type RosterInput struct {
	Participants []Participant `json:"participants"`
}

// GenerateInput is the data structure for the generate endpoint
type GenerateInput struct {
	Participants []Participant `json:"participants"`
	Instructions string        `json:"instructions,omitempty"`
	Tracking     bool          `json:"tracking"`
}

// AssignmentLink is one shareable link produced for a giver
type AssignmentLink struct {
	GiverID   string `json:"giver_id"`
	GiverName string `json:"giver_name"`
	Email     string `json:"email,omitempty"`
	LinkID    string `json:"link_id"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GenerateResponse is the data structure returned by the generate endpoint
type GenerateResponse struct {
	Assignment    GeneratedAssignment `json:"assignment"`
	Links         []AssignmentLink    `json:"links"`
	TrackingToken string              `json:"tracking_token,omitempty"`
	DashboardURL  string              `json:"dashboard_url,omitempty"`
}

// FingerprintInput carries a roster and the fingerprint stored with an earlier assignment
type FingerprintInput struct {
	Participants []Participant `json:"participants"`
	Fingerprint  string        `json:"fingerprint,omitempty"`
}

// ExportInput carries a roster plus a previously generated assignment for CSV export
type ExportInput struct {
	Participants []Participant       `json:"participants"`
	Assignment   GeneratedAssignment `json:"assignment"`
	Instructions string              `json:"instructions,omitempty"`
	Token        string              `json:"token,omitempty"`
}

// Reveal is what a receiving giver sees after opening a link
type Reveal struct {
	From         string `json:"from"`
	Name         string `json:"name"`
	Hint         string `json:"hint,omitempty"`
	Instructions string `json:"info,omitempty"`
	SessionID    string `json:"sid,omitempty"`
	LinkID       string `json:"lid,omitempty"`
	Token        string `json:"-"`
}
