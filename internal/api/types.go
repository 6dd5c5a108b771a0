// ABOUTME: Request and response shapes of the admin API
// ABOUTME: JSON tags match what the admin front-end sends and expects

package api

import (
	"encoding/json"
)

// SignInRequest is the sign-in body.
type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ListResult is one page of a list.
type ListResult struct {
	Total   int              `json:"total"`
	Results []map[string]any `json:"results"`
}

// ActionRequest selects the rows an action runs on. Ids stay raw until
// validated so a bad id is reported as a validation error.
type ActionRequest struct {
	IDs []json.RawMessage `json:"ids"`
}

// ExportRequest picks the exported columns and file format.
type ExportRequest struct {
	Fields []string `json:"fields"`
	Format string   `json:"format"`
}

// ChangePasswordRequest is the change-password body.
type ChangePasswordRequest struct {
	Password string `json:"password"`
}
