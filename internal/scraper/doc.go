// Package scraper turns a retrieved week of the university schedule into lesson
// occurrences.
//
// The schedule page is loosely structured Tailwind-styled markup with Russian dates.
// Extraction locates the schedule root, recovers the seven column dates from the
// header, walks every data row's day columns and reads each lesson card through
// ordered fallback chains. Only a missing root or a header without any recoverable
// date is fatal (ParseError); everything else is reported as an Anomaly and skipped.
//
// The CSS selectors the extractor relies on are collected in Selectors so they can be
// revalidated against the live site and overridden from configuration.
package scraper
