package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"homebudget/internal/core"
)

// RealizationFilter holds the raw month/year filter values. A blank
// value means unfiltered and is omitted from the outbound query.
type RealizationFilter struct {
	Month string
	Year  string
}

// IsZero reports whether no filter value is set.
func (f RealizationFilter) IsZero() bool {
	return f.Month == "" && f.Year == ""
}

func (f RealizationFilter) query() string {
	values := url.Values{}
	if f.Month != "" {
		values.Set("month", f.Month)
	}
	if f.Year != "" {
		values.Set("year", f.Year)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

type realizationCreate struct {
	ExpenseDate core.Date       `json:"expense_date"`
	Name        string          `json:"name"`
	BudgetID    int64           `json:"budget_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// realizationUpdate carries only the mutable fields; the budget
// association and amount are immutable after creation.
type realizationUpdate struct {
	ExpenseDate core.Date `json:"expense_date"`
	Name        string    `json:"name"`
}

// Realizations lists expense entries, optionally filtered by month
// and/or year.
func (c *Client) Realizations(ctx context.Context, token string, filter RealizationFilter) ([]core.Realization, error) {
	var realizations []core.Realization
	if err := c.do(ctx, http.MethodGet, "/realizations/"+filter.query(), token, nil, &realizations); err != nil {
		return nil, err
	}
	return realizations, nil
}

// CreateRealization records a new expense entry against a budget.
func (c *Client) CreateRealization(ctx context.Context, token string, r core.Realization) (core.Realization, error) {
	payload := realizationCreate{ExpenseDate: r.ExpenseDate, Name: r.Name, BudgetID: r.BudgetID, Amount: r.Amount}
	var created core.Realization
	if err := c.do(ctx, http.MethodPost, "/realizations/", token, payload, &created); err != nil {
		return core.Realization{}, err
	}
	return created, nil
}

// UpdateRealization changes date and description of an existing entry.
func (c *Client) UpdateRealization(ctx context.Context, token string, id int64, date core.Date, name string) (core.Realization, error) {
	payload := realizationUpdate{ExpenseDate: date, Name: name}
	var updated core.Realization
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/realizations/%d", id), token, payload, &updated); err != nil {
		return core.Realization{}, err
	}
	return updated, nil
}

// DeleteRealization removes a single expense entry.
func (c *Client) DeleteRealization(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/realizations/%d", id), token, nil, nil)
}
