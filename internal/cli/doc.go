// Package cli implements the command-line interface for schedule-sync.
//
// The cli package provides the Cobra-based CLI with commands to synchronize the
// schedule into Google Calendar (sync), extract a saved page offline (parse), export
// the schedule as an .ics file (export) and run sync on a cron schedule (daemon). It
// wires configuration, storage, the browser session, the Google client and the
// reconciliation engine together.
package cli
