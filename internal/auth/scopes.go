package auth

// Scopes accepted by the API surface.
const (
	ScopeMealplanRead  = "mealplan:read"
	ScopeMealplanWrite = "mealplan:write"
	ScopeHealthRead    = "health:read"
	ScopeHealthWrite   = "health:write"
)
