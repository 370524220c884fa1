// Package syncer runs a synchronization: it fetches and extracts each weekly window
// in turn, keeps page artifacts, decides what a failed week means for the run and
// hands the collected lessons to the reconciliation engine.
package syncer
