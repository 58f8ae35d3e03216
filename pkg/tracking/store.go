package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/arnavshah/secret-santa-api/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMissingIdentifiers = errors.New("session id and link id are required")
	ErrSessionMismatch    = errors.New("link belongs to another session")
)

// LinkSeed identifies one tracked link
type LinkSeed struct {
	SessionID    string
	LinkID       string
	GiverName    string
	ReceiverName string
}

// Store keeps per-link visit counters
type Store struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewStore creates a tracking store on top of an open database
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

// RegisterSessionLinks upserts the links of a generated session. Existing
// counters are kept.
func (s *Store) RegisterSessionLinks(ctx context.Context, links []LinkSeed) error {
	if len(links) == 0 {
		return nil
	}

	rows := make([]database.LinkVisit, 0, len(links))
	for _, l := range links {
		if l.SessionID == "" || l.LinkID == "" {
			return ErrMissingIdentifiers
		}
		rows = append(rows, database.LinkVisit{
			LinkID:       l.LinkID,
			SessionID:    l.SessionID,
			GiverName:    l.GiverName,
			ReceiverName: l.ReceiverName,
		})
	}

	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "giver_name", "receiver_name"}),
	}).Create(&rows).Error
}

// RecordVisit counts one opening of a link, creating the row if the link was
// never registered. A link already owned by another session is left untouched.
func (s *Store) RecordVisit(ctx context.Context, link LinkSeed) error {
	if link.SessionID == "" || link.LinkID == "" {
		return ErrMissingIdentifiers
	}

	now := s.Now().UTC()
	updates := clause.AssignmentColumns([]string{"giver_name", "receiver_name", "last_visited_at"})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "visit_count"},
		Value:  gorm.Expr("visit_count + ?", 1),
	})
	sameSession := gorm.Expr(database.LinkVisit{}.TableName() + ".session_id = excluded.session_id")

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link_id"}},
		DoUpdates: updates,
		Where:     clause.Where{Exprs: []clause.Expression{sameSession}},
	}).Create(&database.LinkVisit{
		LinkID:        link.LinkID,
		SessionID:     link.SessionID,
		GiverName:     link.GiverName,
		ReceiverName:  link.ReceiverName,
		VisitCount:    1,
		LastVisitedAt: &now,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionMismatch
	}
	return nil
}

// FetchSessionLinks returns every link of a session ordered by giver name
func (s *Store) FetchSessionLinks(ctx context.Context, sessionID string) ([]database.LinkVisit, error) {
	visits := []database.LinkVisit{}
	if sessionID == "" {
		return visits, nil
	}
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("giver_name").
		Find(&visits).Error
	return visits, err
}
