// Package backend is the HTTP client for the dispatch backend.
//
// Upload delivers queued SOS reports to POST /api/sos/report and satisfies
// engine.Uploader. The remaining calls cover the collaborator APIs the
// route replay consumes: hospital lookup, paged hospital listing and
// nearest-hospital matching.
package backend
