package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// ID prefixes, one per record kind.
const (
	AccountIDPrefix     = "user-"
	PurchaseIDPrefix    = "purchase-"
	ConsumptionIDPrefix = "usage-"
)

// Account is one registered user as stored in the ledger.
// CredentialHash is a bcrypt hash; the plaintext credential is never kept.
type Account struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"credential_hash"`
	TokenBalance   int       `json:"tokens"`
	CreatedAt      time.Time `json:"created"`
}

// Profile returns the credential-free view of the account.
func (a Account) Profile() Profile {
	return Profile{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		TokenBalance: a.TokenBalance,
		CreatedAt:    a.CreatedAt,
	}
}

// Profile is what callers and the session see of an account.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	TokenBalance int       `json:"tokens"`
	CreatedAt    time.Time `json:"created"`
}

// TokenPurchaseRecord logs one token purchase. Never mutated after append.
type TokenPurchaseRecord struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"userId"`
	TokenAmount int             `json:"amount"`
	Cost        decimal.Decimal `json:"cost"`
	PurchasedAt time.Time       `json:"date"`
}

// TokenConsumptionRecord logs one spent design token.
type TokenConsumptionRecord struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"userId"`
	ConsumedAt time.Time `json:"date"`
}
