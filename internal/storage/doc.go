// Package storage manages the data directory of schedule-sync.
//
// Layout:
//
//	<data_dir>/artifacts/pages/<from>_<to>.html        retrieved week pages
//	<data_dir>/artifacts/screenshots/<from>_<to>.png   screenshots of pages that failed to parse
//	<data_dir>/storage_state.json                      browser cookies between runs
//	<data_dir>/last_run.json                           report of the last sync run
//
// Session state (and any other file written with WriteSealed) is encrypted when an
// encryption key is configured. Files are written atomically with 0600 permissions.
// The default location is ~/.schedule-sync/.
package storage
