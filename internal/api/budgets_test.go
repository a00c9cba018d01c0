package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"homebudget/internal/core"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestCreateBudgetBody(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/budgets/" {
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":5,"name":"Groceries","limit":300,"total_realized":0,"budget_month":7,"budget_year":2025}`))
	}))

	b := core.Budget{Name: "Groceries", Limit: mustDecimal(t, "300"), Month: 7, Year: 2025}
	created, err := client.CreateBudget(context.Background(), "tok", b)
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	want := `{"name":"Groceries","limit":300,"budget_month":7,"budget_year":2025}`
	if gotBody != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
	if created.ID != 5 {
		t.Errorf("created.ID = %d", created.ID)
	}
}

func TestCreateBudgetNeverSendsTotalRealized(t *testing.T) {
	var gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{}`))
	}))

	b := core.Budget{Name: "Rent", Limit: mustDecimal(t, "900"), TotalRealized: mustDecimal(t, "123"), Month: 1, Year: 2025}
	if _, err := client.CreateBudget(context.Background(), "tok", b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	for _, forbidden := range []string{"total_realized", "123"} {
		if strings.Contains(gotBody, forbidden) {
			t.Errorf("body leaked %q: %s", forbidden, gotBody)
		}
	}
}

func TestUpdateBudgetSendsOnlyMutableFields(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"id":5,"name":"Food","limit":350,"total_realized":12,"budget_month":7,"budget_year":2025}`))
	}))

	updated, err := client.UpdateBudget(context.Background(), "tok", 5, "Food", mustDecimal(t, "350"))
	if err != nil {
		t.Fatalf("UpdateBudget: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/budgets/5" {
		t.Errorf("call = %s %s", gotMethod, gotPath)
	}
	if gotBody != `{"name":"Food","limit":350}` {
		t.Errorf("body = %s", gotBody)
	}
	if updated.TotalRealized.String() != "12" {
		t.Errorf("total_realized = %s, want server value displayed as-is", updated.TotalRealized)
	}
}

func TestDeleteBudget(t *testing.T) {
	var gotMethod, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.DeleteBudget(context.Background(), "tok", 5); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/budgets/5" {
		t.Errorf("call = %s %s", gotMethod, gotPath)
	}
}
