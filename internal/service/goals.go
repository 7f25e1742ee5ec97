package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
)

// GoalsService manages the store's sales targets.
type GoalsService struct {
	api     GoalsAPI
	reports *ReportService
	logger  *slog.Logger
}

// NewGoalsService creates a new goals service. Progress reads sales through
// reports.
func NewGoalsService(api GoalsAPI, reports *ReportService, logger *slog.Logger) *GoalsService {
	return &GoalsService{api: api, reports: reports, logger: logger}
}

// Get returns the current targets.
func (s *GoalsService) Get(ctx context.Context, op Operator) (*domain.Goals, error) {
	g, err := s.api.GetGoals(ctx, op.Token)
	if err != nil {
		return nil, fmt.Errorf("get goals: %w", err)
	}
	return g, nil
}

// Update changes the targets set in patch.
func (s *GoalsService) Update(ctx context.Context, op Operator, patch domain.GoalsPatch) (*domain.Goals, error) {
	if !domain.CanManageCatalog(op.Role) {
		return nil, apperrors.Forbidden("only admins and leaders can change goals")
	}
	if patch.IsEmpty() {
		return nil, apperrors.InvalidInput("no targets to update")
	}
	if (patch.DailyTarget != nil && *patch.DailyTarget < 0) || (patch.MonthlyTarget != nil && *patch.MonthlyTarget < 0) {
		return nil, apperrors.InvalidInput("targets must not be negative")
	}

	g, err := s.api.UpdateGoals(ctx, op.Token, patch)
	if err != nil {
		return nil, fmt.Errorf("update goals: %w", err)
	}

	s.logger.InfoContext(ctx, "goals updated",
		slog.Float64("daily_target", g.DailyTarget),
		slog.Float64("monthly_target", g.MonthlyTarget),
	)
	return g, nil
}

// Progress compares today's sales with the daily target and month-to-date
// sales with the monthly target.
func (s *GoalsService) Progress(ctx context.Context, op Operator) (*domain.GoalProgress, error) {
	goals, err := s.Get(ctx, op)
	if err != nil {
		return nil, err
	}

	today := s.reports.Today()
	daily, err := s.reports.Daily(ctx, op, today)
	if err != nil {
		return nil, err
	}

	monthStart := today[:len("2006-01")] + "-01"
	month, err := s.reports.fetchRange(ctx, op, monthStart, today)
	if err != nil {
		return nil, err
	}

	return &domain.GoalProgress{
		Date:    today,
		Daily:   domain.NewProgress(goals.DailyTarget, daily.Sales.SumTotal),
		Monthly: domain.NewProgress(goals.MonthlyTarget, month.Summary().SumTotal),
	}, nil
}
