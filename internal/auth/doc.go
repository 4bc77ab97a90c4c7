// Package auth implements the roomlab token-credit ledger and the session
// state machine that gates design generation.
//
// A Service owns exactly one Session and is the only writer of the ledger.
// The session has two states:
//
//	Anonymous --register/login--> Authenticated --logout--> Anonymous
//
// PurchaseTokens and UseDesignToken are self-loops on Authenticated that
// change the attached account's balance.
//
// # Persistence
//
// Every mutating operation runs inside a single kv.Store Update. The ledger,
// the session snapshot and the transaction log are written together or not
// at all, and the in-memory session only changes after the commit succeeds.
//
// # Consistency
//
// The session is a projection of the ledger. Each authenticated call re-reads
// the account from the ledger before acting, so callers never see a stale
// balance cached in the session.
package auth
