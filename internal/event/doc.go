// Package event provides the lesson occurrence model shared by the extractor and the
// reconciliation engine.
//
// Each lesson occurrence carries a deterministic SHA1-based source ID derived from its
// date, times, title and location. Identical-looking lessons on the same day are told
// apart by an ordinal suffix, so the same logical lesson keeps the same ID across runs.
// The package also defines the typed payload exchanged with the remote calendar.
package event
