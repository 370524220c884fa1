// Package reconcile keeps the managed events of a remote calendar consistent with a
// freshly extracted set of lesson occurrences.
//
// A run moves through FETCH_EXISTING, DIFF, APPLY (or a dry run) and REPORT. The full
// snapshot of existing managed events is captured before any diff decision is made.
// Only remote events tagged with this system's managed_by marker and a source_id are
// ever considered; everything else on the calendar is left untouched.
package reconcile
