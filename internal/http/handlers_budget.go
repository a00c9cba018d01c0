package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"homebudget/internal/core"
	"homebudget/internal/log"
)

// budgetsPageData feeds the budgets page and list partial.
type budgetsPageData struct {
	User    core.User
	Budgets []core.Budget
}

// budgetFormData feeds the create/edit form partial. Edit mode hides
// month and year: they are immutable after creation.
type budgetFormData struct {
	Edit   bool
	Budget core.Budget
}

func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	budgets, err := s.backend.Budgets(r.Context(), sctx.Token)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	s.render(w, r, "budgets.html", budgetsPageData{User: sctx.User, Budgets: budgets})
}

// handleBudgetsList serves the list partial; the page refetches it on
// every budgets:changed trigger.
func (s *Server) handleBudgetsList(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	budgets, err := s.backend.Budgets(r.Context(), sctx.Token)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	s.render(w, r, "budgets_list.html", budgetsPageData{User: sctx.User, Budgets: budgets})
}

func (s *Server) handleBudgetNewForm(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	s.render(w, r, "budget_form.html", budgetFormData{})
}

// handleBudgetEditForm pre-populates the form from the selected
// budget. The backend has no single-budget read, so the collection is
// fetched and filtered here.
func (s *Server) handleBudgetEditForm(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	budgets, err := s.backend.Budgets(r.Context(), sctx.Token)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	for _, b := range budgets {
		if b.ID == id {
			s.render(w, r, "budget_form.html", budgetFormData{Edit: true, Budget: b})
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleBudgetCreate(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	if err := r.ParseForm(); err != nil {
		NewHTMXResponse().
			Status(http.StatusBadRequest).
			TriggerErrorNotification("Invalid request").
			Write(w)
		return
	}

	budget, err := ParseBudgetForm(r.Form)
	if err != nil {
		// Validation failures never reach the backend; the form stays
		// open for correction.
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(validationMessage(err)).
			Write(w)
		return
	}

	created, err := s.backend.CreateBudget(r.Context(), sctx.Token, budget)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Budget created",
		log.FieldBudgetID, created.ID,
		log.FieldMonth, created.Month,
		log.FieldYear, created.Year,
		log.FieldOperation, log.OpCreate)

	NewHTMXResponse().
		TriggerBudgetsChanged().
		TriggerFormClose().
		TriggerSuccessNotification("Budget created").
		Write(w)
}

func (s *Server) handleBudgetUpdate(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		NewHTMXResponse().
			Status(http.StatusBadRequest).
			TriggerErrorNotification("Invalid request").
			Write(w)
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	limit, parseErr := core.ParseAmount(r.Form.Get("limit"))
	if name == "" || parseErr != nil {
		msg := validationMessage(core.ErrEmptyName)
		if parseErr != nil {
			msg = validationMessage(core.ErrInvalidAmount)
		}
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(msg).
			Write(w)
		return
	}

	if _, err := s.backend.UpdateBudget(r.Context(), sctx.Token, id, name, limit); err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Budget updated",
		log.FieldBudgetID, id,
		log.FieldOperation, log.OpUpdate)

	NewHTMXResponse().
		TriggerBudgetsChanged().
		TriggerFormClose().
		TriggerSuccessNotification("Budget updated").
		Write(w)
}

// handleBudgetDelete issues the delete. The cascade warning (deleting
// a budget deletes its realizations too) is confirmed browser-side
// before this request is ever sent.
func (s *Server) handleBudgetDelete(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.backend.DeleteBudget(r.Context(), sctx.Token, id); err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Budget deleted",
		log.FieldBudgetID, id,
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerBudgetsChanged().
		TriggerSuccessNotification("Budget deleted").
		Write(w)
}
