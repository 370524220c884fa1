// Package browser drives a Chromium session through chromedp to log into the
// student portal and retrieve rendered schedule pages.
//
// A Session restores the cookies saved by the previous run when it opens and saves
// them again on Close, which callers defer so the state is flushed on every exit path.
// One Session is a single-writer resource: weeks are fetched one at a time.
package browser
