package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/roomlab/internal/catalog"
	"github.com/roach88/roomlab/internal/ledger"
)

// profileView is an account as commands print it.
type profileView struct {
	ledger.Profile
	headline string
}

func (v profileView) String() string {
	return fmt.Sprintf("%s\n  %s <%s>\n  id: %s\n  tokens: %d", v.headline, v.Name, v.Email, v.ID, v.TokenBalance)
}

type whoamiView struct {
	Authenticated bool `json:"authenticated"`
	*ledger.Profile
}

func (v whoamiView) String() string {
	if !v.Authenticated {
		return "Not signed in"
	}
	return profileView{Profile: *v.Profile, headline: "Signed in"}.String()
}

type logoutView struct {
	SignedOut bool `json:"signed_out"`
}

func (v logoutView) String() string {
	if !v.SignedOut {
		return "Not signed in"
	}
	return "Signed out"
}

type purchaseView struct {
	Amount int             `json:"amount"`
	Cost   decimal.Decimal `json:"cost"`
	Tokens int             `json:"tokens"`
}

func (v purchaseView) String() string {
	return fmt.Sprintf("Bought %d design tokens for $%s\n  balance: %d", v.Amount, v.Cost.StringFixed(2), v.Tokens)
}

type spendView struct {
	Spent  bool `json:"spent"`
	Tokens int  `json:"tokens"`
}

func (v spendView) String() string {
	if !v.Spent {
		return "No design tokens left; buy more with 'roomlab buy <amount>'"
	}
	return fmt.Sprintf("Used 1 design token, %d left", v.Tokens)
}

type historyView struct {
	Purchases    []ledger.TokenPurchaseRecord    `json:"purchases"`
	Consumptions []ledger.TokenConsumptionRecord `json:"consumptions"`
}

func (v historyView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Purchases (%d):\n", len(v.Purchases))
	for _, p := range v.Purchases {
		fmt.Fprintf(&b, "  %s  %3d tokens  $%s\n", p.PurchasedAt.Format(time.DateTime), p.TokenAmount, p.Cost.StringFixed(2))
	}
	fmt.Fprintf(&b, "Design tokens used (%d):\n", len(v.Consumptions))
	for _, c := range v.Consumptions {
		fmt.Fprintf(&b, "  %s\n", c.ConsumedAt.Format(time.DateTime))
	}
	return strings.TrimRight(b.String(), "\n")
}

type packagesView []catalog.Package

func (v packagesView) String() string {
	var b strings.Builder
	for _, p := range v {
		marker := ""
		if p.Popular {
			marker = "  (most popular)"
		}
		fmt.Fprintf(&b, "%-10s %3d tokens  $%-7s $%s/token%s\n", p.Name, p.Tokens, p.Price.StringFixed(2), p.PerToken().StringFixed(2), marker)
	}
	return strings.TrimRight(b.String(), "\n")
}
