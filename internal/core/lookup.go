package core

// BudgetName resolves the display name for a budget id against an
// independently fetched budget collection. Realization records only
// carry the budget id, so the name join happens here, client-side.
// The second return is false when the id is not present (the caller
// renders a placeholder).
func BudgetName(budgets []Budget, id int64) (string, bool) {
	for _, b := range budgets {
		if b.ID == id {
			return b.Name, true
		}
	}
	return "", false
}
