// Package gcal talks to the Google Calendar v3 API on behalf of the reconciliation
// engine: event listing and mutations with retries on rate limits and server errors,
// plus the OAuth2 installed-application flow and token caching.
package gcal
