package client

import (
	"context"
	"net/http"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
)

// GetGoals returns the configured targets. Missing targets read as 0.
func (c *Client) GetGoals(ctx context.Context, token string) (*domain.Goals, error) {
	var g domain.Goals
	if err := c.do(ctx, call{
		op:     "get_goals",
		method: http.MethodGet,
		path:   "/settings/goals",
		token:  token,
		out:    &g,
	}); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGoals sends only the changed targets; the backend merges them and
// answers with the full goals.
func (c *Client) UpdateGoals(ctx context.Context, token string, patch domain.GoalsPatch) (*domain.Goals, error) {
	var g domain.Goals
	if err := c.do(ctx, call{
		op:     "update_goals",
		method: http.MethodPut,
		path:   "/settings/goals",
		token:  token,
		in:     patch,
		out:    &g,
	}); err != nil {
		return nil, err
	}
	return &g, nil
}
