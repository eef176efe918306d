// Package gate decides what a consumer may render or serve from the
// current auth state and a declared requirement.
//
// Decide is a pure function: it never mutates the state and never issues
// lookups. While the state is loading it returns Pending regardless of
// the other fields, so protected surfaces never flash a grant or a
// denial that then flips.
package gate
