// Package audit keeps the versionwatch activity trail: every version the
// pipeline records, every resolve failure and every admin edit to watched
// files or broker settings.
//
// Entries live in the audit_log table of the same SQLite database as the
// configuration store and are served by GET /api/v1/activity.
package audit
