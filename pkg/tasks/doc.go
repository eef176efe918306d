// Package tasks implements the two-person shared task list: the task
// records themselves, the collaborator pair, and the permission rules
// tying them together.
//
// Permissions are per-task: the creator may edit and delete, the
// assignee (or the creator) may toggle completion. Every mutation is
// published on a change feed so connected clients can live-update.
package tasks
