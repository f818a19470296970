// Package receiver is a command-center stand-in for the SOS endpoint.
//
// It accepts uploads on POST /api/sos/report and deduplicates them on
// offlineId, so a report uploaded twice (for example after a crash between
// upload and local mark-synced) is stored once. Reports live in the
// sos_reports table of a store.Store.
package receiver
