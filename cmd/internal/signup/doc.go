// Package signup implements the beta application funnel.
//
// A signup record moves strictly forward through three states:
//
//	unverified -> verified -> completed
//
// Service.Intake creates the record (after rate limiting, honeypot, input and bot checks)
// and mails a verification link. Service.Verify flips the record to verified exactly once.
// Service.Complete records the questionnaire answers on a verified record and closes it.
//
// Persistence is behind the Store interface (memory, PostgreSQL, or the Airtable adapter
// in package airtable). Errors are typed so the HTTP layer can map them without string
// matching:
//   - ValidationError and RateLimitError are client errors with a user-facing message.
//   - StateError covers missing/unknown tokens and wrong prior state; messages are generic.
//   - DependencyError wraps store, bot gate and mail failures; details are logged, never returned.
package signup
