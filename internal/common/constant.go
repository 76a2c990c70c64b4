// Package common contains constants, sentinel errors and path rules shared
// by the catalog client and the snapshot service.
package common

const (
	// AuthorizationHeader carries "Bearer <token>" on requests to the snapshot service.
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	// PrimaryPath is the canonical shared database snapshot.
	PrimaryPath = "db.json"

	// SuggestionsDir holds non-destructive copies written by non-privileged users.
	SuggestionsDir = "suggestions"
)
