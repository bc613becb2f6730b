package auth

// Known OAuth scopes.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
)

// DefaultScopes are granted by the operator CLI when none are requested.
var DefaultScopes = []string{ScopeActivitiesRead, ScopeActivitiesWrite}
