package returns

import (
	"context"
	"fmt"

	"moiledger/internal/page"

	"gorm.io/gorm"
)

// Source loads the history rows of a set of families.
type Source interface {
	History(ctx context.Context, familyIDs []string) ([]HistoryRow, error)
}

type Scoper interface {
	Scope(ctx context.Context, userID, requested string) ([]string, error)
}

type Store struct {
	DB *gorm.DB
}

func (s *Store) History(ctx context.Context, familyIDs []string) ([]HistoryRow, error) {
	rows := []HistoryRow{}
	if len(familyIDs) == 0 {
		return rows, nil
	}
	err := s.DB.WithContext(ctx).
		Table("contribution_histories AS h").
		Select("h.*, COALESCE(e.title, '') AS event_title, COALESCE(e.type, '') AS event_type").
		Joins("LEFT JOIN events e ON e.id = h.event_id").
		Where("h.family_id IN ?", familyIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load contribution history: %w", err)
	}
	return rows, nil
}

type Service struct {
	Source   Source
	Families Scoper
}

// Get resolves the user's family scope and computes one page of balances.
func (s *Service) Get(ctx context.Context, userID, familyID string, p page.Params) (page.Result[Person], error) {
	scope, err := s.Families.Scope(ctx, userID, familyID)
	if err != nil {
		return page.Result[Person]{}, err
	}
	if len(scope) == 0 {
		return page.New([]Person{}, p, 0), nil
	}
	rows, err := s.Source.History(ctx, scope)
	if err != nil {
		return page.Result[Person]{}, err
	}
	return Compute(rows, p), nil
}
