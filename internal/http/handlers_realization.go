package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"homebudget/internal/api"
	"homebudget/internal/core"
	"homebudget/internal/log"
)

// realizationRow is one rendered list entry: the realization plus its
// budget name resolved from the independently fetched budget
// collection. A missing budget renders the literal "N/A".
type realizationRow struct {
	core.Realization
	BudgetName string
}

// realizationsPageData feeds the realizations page and list partial.
type realizationsPageData struct {
	User   core.User
	Rows   []realizationRow
	Filter api.RealizationFilter
}

// realizationFormData feeds the create/edit form partial. Edit mode
// hides the budget and amount: both are immutable after creation.
type realizationFormData struct {
	Edit        bool
	Realization core.Realization
	Budgets     []core.Budget
}

// fetchRealizationRows loads realizations and budgets concurrently and
// joins budget names in.
func (s *Server) fetchRealizationRows(r *http.Request, sctx sessionContext, filter api.RealizationFilter) ([]realizationRow, error) {
	var (
		realizations []core.Realization
		budgets      []core.Budget
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		realizations, err = s.backend.Realizations(ctx, sctx.Token, filter)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.backend.Budgets(ctx, sctx.Token)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]realizationRow, 0, len(realizations))
	for _, entry := range realizations {
		name, ok := core.BudgetName(budgets, entry.BudgetID)
		if !ok {
			name = "N/A"
		}
		rows = append(rows, realizationRow{Realization: entry, BudgetName: name})
	}
	return rows, nil
}

func (s *Server) handleRealizationsPage(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	filter := ParseFilterParams(r.URL.Query())
	rows, err := s.fetchRealizationRows(r, sctx, filter)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	s.render(w, r, "realizations.html", realizationsPageData{User: sctx.User, Rows: rows, Filter: filter})
}

// handleRealizationsList serves the list partial. The page refetches
// it when the filter is applied and on every realizations:changed
// trigger, so the list always matches the visible filter inputs.
func (s *Server) handleRealizationsList(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	filter := ParseFilterParams(r.URL.Query())
	rows, err := s.fetchRealizationRows(r, sctx, filter)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	s.render(w, r, "realizations_list.html", realizationsPageData{User: sctx.User, Rows: rows, Filter: filter})
}

// handleRealizationNewForm renders the create form. The budget select
// needs the collection, so creation is blocked until budgets load.
func (s *Server) handleRealizationNewForm(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	budgets, err := s.backend.Budgets(r.Context(), sctx.Token)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	s.render(w, r, "realization_form.html", realizationFormData{Budgets: budgets})
}

func (s *Server) handleRealizationEditForm(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	realizations, err := s.backend.Realizations(r.Context(), sctx.Token, api.RealizationFilter{})
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}
	for _, entry := range realizations {
		if entry.ID == id {
			s.render(w, r, "realization_form.html", realizationFormData{Edit: true, Realization: entry})
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) handleRealizationCreate(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	if err := r.ParseForm(); err != nil {
		NewHTMXResponse().
			Status(http.StatusBadRequest).
			TriggerErrorNotification("Invalid request").
			Write(w)
		return
	}

	realization, err := ParseRealizationForm(r.Form)
	if err != nil {
		// Client-side validation signal; no network call was made.
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(validationMessage(err)).
			Write(w)
		return
	}

	created, err := s.backend.CreateRealization(r.Context(), sctx.Token, realization)
	if err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Realization created",
		log.FieldBudgetID, created.BudgetID,
		log.FieldOperation, log.OpCreate)

	NewHTMXResponse().
		TriggerRealizationsChanged().
		TriggerFormClose().
		TriggerSuccessNotification("Expense recorded").
		Write(w)
}

func (s *Server) handleRealizationUpdate(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
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

	date, dateErr := core.ParseDate(sanitizeInput(r.Form.Get("expense_date")))
	name := sanitizeInput(r.Form.Get("name"))
	if dateErr != nil || name == "" {
		msg := validationMessage(core.ErrInvalidDate)
		if name == "" {
			msg = validationMessage(core.ErrEmptyName)
		}
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(msg).
			Write(w)
		return
	}

	if _, err := s.backend.UpdateRealization(r.Context(), sctx.Token, id, date, name); err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Realization updated",
		log.FieldOperation, log.OpUpdate)

	NewHTMXResponse().
		TriggerRealizationsChanged().
		TriggerFormClose().
		TriggerSuccessNotification("Expense updated").
		Write(w)
}

func (s *Server) handleRealizationDelete(w http.ResponseWriter, r *http.Request, sctx sessionContext) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.backend.DeleteRealization(r.Context(), sctx.Token, id); err != nil {
		s.respondAPIError(w, r, sctx, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Realization deleted",
		log.FieldOperation, log.OpDelete)

	NewHTMXResponse().
		TriggerRealizationsChanged().
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}
