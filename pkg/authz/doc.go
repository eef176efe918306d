// Package authz defines authorization records and the remote lookup
// contract used to resolve an email to permissions.
//
// The application distinguishes two tiers: collaborators, who may use the
// shared task list, and admins, who additionally manage the collaborator
// allow-list. Admin access is a strict superset of collaborator access;
// Record.Normalize enforces that even when the backing store reports the
// two flags independently.
package authz
