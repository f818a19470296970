// Package ir provides the core record types for the Lifeline offline SOS queue.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Record IDs are generated client-side and never change
//   - Synced only moves false -> true
//   - Timestamps are client wall-clock milliseconds (presentation order only)
//   - JSON tags follow the upload endpoint's camelCase wire format
package ir
