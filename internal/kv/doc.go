// Package kv provides the string key-value store that backs the roomlab
// ledger, session and transaction log.
//
// Every backend offers the same three primitives (Get, Set, Remove) plus
// transactional View and Update. Update is all-or-nothing: when the callback
// returns an error, none of its writes become visible.
//
// # Backends
//
//   - Memory: map guarded by a mutex, writes staged in an overlay
//   - SQLite: single-table store over mattn/go-sqlite3 (WAL, user_version stamp)
//   - Redis: go-redis client with WATCH/MULTI optimistic concurrency
//
// Values are opaque UTF-8 strings; callers own the encoding.
package kv
