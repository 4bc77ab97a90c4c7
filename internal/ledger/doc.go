// Package ledger defines the records that make up the roomlab token ledger:
// accounts, their credential-free profiles, and the append-only purchase
// and consumption logs.
//
// The package holds data and pure helpers only. Mutation rules live in the
// auth service, which is the single writer of these records.
package ledger
