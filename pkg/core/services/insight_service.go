package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/core/domain"
	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

var ErrInvalidQuery = errors.New("invalid query")

type InsightService struct {
	repo ports.EventRepository
}

func NewInsightService(repo ports.EventRepository) *InsightService {
	return &InsightService{repo: repo}
}

func (s *InsightService) ListVisitors(ctx context.Context, query domain.VisitorQuery) ([]domain.Visitor, error) {
	if query.Limit == 0 {
		query.Limit = domain.DefaultVisitorLimit
	}
	if query.Limit < 1 || query.Limit > domain.MaxVisitorLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, domain.MaxVisitorLimit)
	}

	switch query.SortBy {
	case domain.SortIntentScore, domain.SortVisitCount, domain.SortLastVisitDate:
	default:
		query.SortBy = domain.SortIntentScore
	}

	if query.DateFrom != nil && query.DateTo != nil && !query.DateFrom.Before(*query.DateTo) {
		return []domain.Visitor{}, nil
	}

	return s.repo.ListVisitors(ctx, query)
}

func (s *InsightService) FilterOptions(ctx context.Context) (*domain.FilterOptions, error) {
	return s.repo.FilterOptions(ctx)
}

var _ ports.InsightService = (*InsightService)(nil)
