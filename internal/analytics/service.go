package analytics

import (
	"context"
	"fmt"

	"moiledger/internal/ledger"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Source interface {
	Transactions(ctx context.Context, familyIDs []string) ([]TxRow, error)
	EventCount(ctx context.Context, familyIDs []string) (int64, error)
}

type Scoper interface {
	Scope(ctx context.Context, userID, requested string) ([]string, error)
}

type Store struct {
	DB *gorm.DB
}

func (s *Store) Transactions(ctx context.Context, familyIDs []string) ([]TxRow, error) {
	rows := []TxRow{}
	err := s.DB.WithContext(ctx).
		Model(&ledger.Transaction{}).
		Select("contributor_name", "amount", "direction", "created_at").
		Where("family_id IN ?", familyIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return rows, nil
}

func (s *Store) EventCount(ctx context.Context, familyIDs []string) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&ledger.Event{}).Where("family_id IN ?", familyIDs).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type Service struct {
	Source   Source
	Families Scoper
	TopN     int
}

func (s *Service) Get(ctx context.Context, userID, familyID string) (Report, error) {
	scope, err := s.Families.Scope(ctx, userID, familyID)
	if err != nil {
		return Report{}, err
	}
	if len(scope) == 0 {
		return Empty(), nil
	}

	var (
		rows   []TxRow
		events int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.Source.Transactions(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.Source.EventCount(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	topN := s.TopN
	if topN == 0 {
		topN = DefaultTopN
	}
	return Summarize(rows, events, topN), nil
}
