// Package store provides SQLite-backed durable storage for the SOS queue.
//
// The store holds two collections:
//   - sos_records: the device-local queue of SOS reports awaiting upload
//   - sos_reports: reports received by the command-center endpoint
//
// # Guarantees
//
// Durability: InsertRecord returns only after the row is committed with
// synchronous=FULL, so a record survives a process restart once saved.
//
// Identity: record IDs are unique for the lifetime of the store. A second
// insert with the same ID fails with ErrDuplicateID.
//
// Monotonic sync flag: MarkSynced only ever writes synced = 1. Nothing in
// this package writes synced = 0 after insertion.
//
// Idempotent receive: InsertReport deduplicates on offline_id, returning the
// already stored report for a repeated key.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: A committed save is on disk before it returns
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: SQLite allows one writer at a time
//
// A store that cannot be opened, or has been closed, fails every operation
// with an error wrapping ErrStorageUnavailable.
package store
