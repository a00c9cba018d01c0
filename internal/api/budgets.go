package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"homebudget/internal/core"
)

// budgetCreate is the creation payload. total_realized is deliberately
// absent: it is a server-maintained aggregate the client never sets.
type budgetCreate struct {
	Name  string          `json:"name"`
	Limit decimal.Decimal `json:"limit"`
	Month int             `json:"budget_month"`
	Year  int             `json:"budget_year"`
}

// budgetUpdate carries only the mutable fields; month and year are
// immutable after creation.
type budgetUpdate struct {
	Name  string          `json:"name"`
	Limit decimal.Decimal `json:"limit"`
}

// Budgets lists all budgets owned by the token's user.
func (c *Client) Budgets(ctx context.Context, token string) ([]core.Budget, error) {
	var budgets []core.Budget
	if err := c.do(ctx, http.MethodGet, "/budgets/", token, nil, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// CreateBudget creates a new monthly envelope and returns the stored
// resource.
func (c *Client) CreateBudget(ctx context.Context, token string, b core.Budget) (core.Budget, error) {
	payload := budgetCreate{Name: b.Name, Limit: b.Limit, Month: b.Month, Year: b.Year}
	var created core.Budget
	if err := c.do(ctx, http.MethodPost, "/budgets/", token, payload, &created); err != nil {
		return core.Budget{}, err
	}
	return created, nil
}

// UpdateBudget changes name and limit of an existing budget.
func (c *Client) UpdateBudget(ctx context.Context, token string, id int64, name string, limit decimal.Decimal) (core.Budget, error) {
	payload := budgetUpdate{Name: name, Limit: limit}
	var updated core.Budget
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/budgets/%d", id), token, payload, &updated); err != nil {
		return core.Budget{}, err
	}
	return updated, nil
}

// DeleteBudget removes a budget. The backend cascades the delete to
// the budget's realizations; the UI warns the user before calling this.
func (c *Client) DeleteBudget(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/budgets/%d", id), token, nil, nil)
}
