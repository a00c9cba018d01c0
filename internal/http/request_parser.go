// Package http provides HTTP server and handler implementations.
//
// This file parses form and query input for the budget and
// realization sections. Parsing happens before any network call so
// invalid input never reaches the backend.
package http

import (
	"net/url"
	"strconv"
	"strings"

	"homebudget/internal/api"
	"homebudget/internal/core"
)

// ParseFilterParams extracts the realization month/year filter from
// query parameters. Blank values stay blank: they are omitted from the
// outbound backend query, not defaulted.
func ParseFilterParams(query url.Values) api.RealizationFilter {
	return api.RealizationFilter{
		Month: strings.TrimSpace(query.Get("month")),
		Year:  strings.TrimSpace(query.Get("year")),
	}
}

// ParseBudgetForm builds a budget from create-form values. The zero ID
// marks it as not yet created.
func ParseBudgetForm(form url.Values) (core.Budget, error) {
	limit, err := core.ParseAmount(form.Get("limit"))
	if err != nil {
		return core.Budget{}, err
	}
	month, err := strconv.Atoi(strings.TrimSpace(form.Get("budget_month")))
	if err != nil {
		return core.Budget{}, core.ErrInvalidMonth
	}
	year, err := strconv.Atoi(strings.TrimSpace(form.Get("budget_year")))
	if err != nil {
		return core.Budget{}, core.ErrInvalidYear
	}

	b := core.Budget{
		Name:  sanitizeInput(form.Get("name")),
		Limit: limit,
		Month: month,
		Year:  year,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// ParseRealizationForm builds a realization from create-form values.
// A missing budget selection fails with ErrNoBudget before anything
// touches the network.
func ParseRealizationForm(form url.Values) (core.Realization, error) {
	budgetRaw := strings.TrimSpace(form.Get("budget_id"))
	if budgetRaw == "" {
		return core.Realization{}, core.ErrNoBudget
	}
	budgetID, err := strconv.ParseInt(budgetRaw, 10, 64)
	if err != nil || budgetID <= 0 {
		return core.Realization{}, core.ErrNoBudget
	}

	date, err := core.ParseDate(strings.TrimSpace(form.Get("expense_date")))
	if err != nil {
		return core.Realization{}, err
	}
	amount, err := core.ParseAmount(form.Get("amount"))
	if err != nil {
		return core.Realization{}, err
	}

	r := core.Realization{
		ExpenseDate: date,
		Name:        sanitizeInput(form.Get("name")),
		BudgetID:    budgetID,
		Amount:      amount,
	}
	if err := r.Validate(); err != nil {
		return core.Realization{}, err
	}
	return r, nil
}

// validationMessage maps a client-side validation error to the inline
// message shown in the form.
func validationMessage(err error) string {
	switch err {
	case core.ErrNoBudget:
		return "Select a budget first"
	case core.ErrEmptyName:
		return "Name cannot be empty"
	case core.ErrInvalidAmount:
		return "Enter a valid positive amount"
	case core.ErrInvalidMonth:
		return "Month must be between 1 and 12"
	case core.ErrInvalidYear:
		return "Year must be 2000 or later"
	case core.ErrInvalidDate:
		return "Enter a valid date (YYYY-MM-DD)"
	default:
		return "Invalid input"
	}
}
