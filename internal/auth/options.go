package auth

import (
	"io"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/roomlab/internal/catalog"
)

// DefaultSignupGrant is the number of free tokens a new account receives.
const DefaultSignupGrant = 3

// Keys names the store entries the service reads and writes.
type Keys struct {
	Session      string // active session's account snapshot
	Accounts     string // full account collection
	Purchases    string // purchase history
	Consumptions string // consumption history
}

// DefaultKeys returns the key names used by the browser app.
func DefaultKeys() Keys {
	return Keys{
		Session:      "roomlab_user",
		Accounts:     "roomlab_users",
		Purchases:    "roomlab_purchases",
		Consumptions: "roomlab_token_usage",
	}
}

type options struct {
	logger      *slog.Logger
	clock       Clock
	ids         IDGenerator
	catalog     *catalog.Catalog
	signupGrant int
	bcryptCost  int
	keys        Keys
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:       systemClock{},
		ids:         UUIDv7Generator{},
		catalog:     catalog.Default(),
		signupGrant: DefaultSignupGrant,
		bcryptCost:  bcrypt.DefaultCost,
		keys:        DefaultKeys(),
	}
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger. Operations log at Debug, rejections at Warn.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator overrides the record ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithCatalog sets the token price table.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithSignupGrant sets the tokens granted on registration. Negative values
// are treated as 0.
func WithSignupGrant(n int) Option {
	return func(o *options) { o.signupGrant = n }
}

// WithBcryptCost sets the credential hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(o *options) { o.bcryptCost = cost }
}

// WithKeys overrides the store key names. Distinct session keys let several
// services share one store, one session each.
func WithKeys(k Keys) Option {
	return func(o *options) { o.keys = k }
}
