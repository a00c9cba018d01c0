package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Date is a calendar date without a time component. It marshals to
	// and from the backend's YYYY-MM-DD wire format.
	Date struct {
		time.Time
	}

	// User is the profile resolved from the backend for the current
	// session. Created server-side on registration; read-only here.
	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	// Budget is a monthly spending envelope. TotalRealized is a
	// server-maintained aggregate; the client only displays it and
	// never computes or submits it. Month and Year are immutable after
	// creation.
	Budget struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		Limit         decimal.Decimal `json:"limit"`
		TotalRealized decimal.Decimal `json:"total_realized"`
		Month         int             `json:"budget_month"`
		Year          int             `json:"budget_year"`
	}

	// Realization is a single dated expense entry attributed to exactly
	// one budget. The budget association is immutable after creation.
	Realization struct {
		ID          int64           `json:"id"`
		ExpenseDate Date            `json:"expense_date"`
		Name        string          `json:"name"`
		BudgetID    int64           `json:"budget_id"`
		Amount      decimal.Decimal `json:"amount"`
	}
)

var (
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
	ErrInvalidDate   = errors.New("invalid date")
	ErrNoBudget      = errors.New("no budget selected")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (b Budget) Validate() error {
	if b.Name == "" {
		return ErrEmptyName
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 2000 {
		return ErrInvalidYear
	}
	return nil
}

func (r Realization) Validate() error {
	if r.Name == "" {
		return ErrEmptyName
	}
	if r.BudgetID <= 0 {
		return ErrNoBudget
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.ExpenseDate.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
