package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/roomlab/internal/catalog"
	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/ledger"
)

// Service is the auth/token service. It owns one Session and serializes
// its operations with a mutex; concurrent writers from other Services are
// serialized by the store's transactions.
type Service struct {
	store kv.Store
	opts  options
	log   *slog.Logger

	mu      sync.Mutex
	session Session
}

// New creates a Service over store. The session starts Anonymous; call
// Restore to pick up a persisted session.
func New(store kv.Store, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.signupGrant < 0 {
		o.logger.Warn("negative signup grant, using 0", "grant", o.signupGrant)
		o.signupGrant = 0
	}
	return &Service{store: store, opts: o, log: o.logger}
}

// Register creates an account holding the signup grant and signs it in.
func (s *Service) Register(ctx context.Context, name, email, credential string) (ledger.Profile, error) {
	const op = "register"

	name = ledger.NormalizeName(name)
	email = ledger.NormalizeEmail(email)
	if name == "" || email == "" || credential == "" {
		return ledger.Profile{}, s.fail(op, newError(CodeValidation, op, "name, email and credential are required"))
	}
	if !strings.Contains(email, "@") {
		return ledger.Profile{}, s.fail(op, newError(CodeValidation, op, "email address is malformed"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), s.opts.bcryptCost)
	if err != nil {
		return ledger.Profile{}, s.fail(op, &Error{Code: CodeValidation, Op: op, Message: "credential cannot be used", Err: err})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created ledger.Account
	err = s.store.Update(ctx, func(tx kv.Txn) error {
		accounts, err := s.loadAccounts(ctx, tx)
		if err != nil {
			return err
		}
		if _, exists := accounts.ByEmail(email); exists {
			return newError(CodeConflict, op, "an account with this email already exists")
		}

		created = ledger.Account{
			ID:             ledger.AccountIDPrefix + s.opts.ids.Generate(),
			Name:           name,
			Email:          email,
			CredentialHash: string(hash),
			TokenBalance:   s.opts.signupGrant,
			CreatedAt:      s.opts.clock.Now(),
		}
		accounts = append(accounts, created)

		if err := put(ctx, tx, s.opts.keys.Accounts, accounts); err != nil {
			return err
		}
		return put(ctx, tx, s.opts.keys.Session, created.Profile())
	})
	if err != nil {
		return ledger.Profile{}, s.fail(op, err)
	}

	p := created.Profile()
	s.session.attach(p)
	s.log.Debug("account registered", "account", p.ID, "tokens", p.TokenBalance)
	return p, nil
}

// Login signs in the account matching email and credential. On failure the
// current session, authenticated or not, is left as it was.
func (s *Service) Login(ctx context.Context, email, credential string) (ledger.Profile, error) {
	const op = "login"

	email = ledger.NormalizeEmail(email)
	if email == "" || credential == "" {
		return ledger.Profile{}, s.fail(op, newError(CodeValidation, op, "email and credential are required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found ledger.Account
	err := s.store.Update(ctx, func(tx kv.Txn) error {
		accounts, err := s.loadAccounts(ctx, tx)
		if err != nil {
			return err
		}
		i, ok := accounts.ByEmail(email)
		if !ok || bcrypt.CompareHashAndPassword([]byte(accounts[i].CredentialHash), []byte(credential)) != nil {
			return newError(CodeAuth, op, "invalid credentials")
		}
		found = accounts[i]
		return put(ctx, tx, s.opts.keys.Session, found.Profile())
	})
	if err != nil {
		return ledger.Profile{}, s.fail(op, err)
	}

	p := found.Profile()
	s.session.attach(p)
	s.log.Debug("account signed in", "account", p.ID)
	return p, nil
}

// Logout clears the session and its persisted snapshot. Logging out while
// anonymous is a no-op.
func (s *Service) Logout(ctx context.Context) error {
	const op = "logout"

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.session.Account()
	if !ok {
		return nil
	}

	err := s.store.Update(ctx, func(tx kv.Txn) error {
		return tx.Remove(ctx, s.opts.keys.Session)
	})
	if err != nil {
		return s.fail(op, err)
	}

	s.session.clear()
	s.log.Debug("account signed out", "account", p.ID)
	return nil
}

// PurchaseTokens credits amount tokens to the signed-in account and logs the
// purchase at the catalog price. Amounts no package sells are rejected.
func (s *Service) PurchaseTokens(ctx context.Context, amount int) (ledger.Profile, error) {
	p, _, err := s.Purchase(ctx, amount)
	return p, err
}

// Purchase is PurchaseTokens that also returns the purchase record it wrote.
func (s *Service) Purchase(ctx context.Context, amount int) (ledger.Profile, ledger.TokenPurchaseRecord, error) {
	const op = "purchase"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State() != Authenticated {
		return ledger.Profile{}, ledger.TokenPurchaseRecord{}, s.fail(op, newError(CodeAuth, op, "not authenticated"))
	}
	if amount <= 0 {
		return ledger.Profile{}, ledger.TokenPurchaseRecord{}, s.fail(op, newError(CodeValidation, op, "amount must be positive"))
	}
	cost, err := s.opts.catalog.Price(amount)
	if err != nil {
		return ledger.Profile{}, ledger.TokenPurchaseRecord{}, s.fail(op, &Error{
			Code:    CodeValidation,
			Op:      op,
			Message: fmt.Sprintf("no token package sells %d tokens (available: %v)", amount, s.opts.catalog.Amounts()),
			Err:     err,
		})
	}

	var (
		updated ledger.Account
		record  ledger.TokenPurchaseRecord
	)
	err = s.store.Update(ctx, func(tx kv.Txn) error {
		accounts, i, err := s.current(ctx, op, tx)
		if err != nil {
			return err
		}
		accounts[i].TokenBalance += amount
		updated = accounts[i]

		if err := put(ctx, tx, s.opts.keys.Accounts, accounts); err != nil {
			return err
		}
		record = ledger.TokenPurchaseRecord{
			ID:          ledger.PurchaseIDPrefix + s.opts.ids.Generate(),
			AccountID:   updated.ID,
			TokenAmount: amount,
			Cost:        cost,
			PurchasedAt: s.opts.clock.Now(),
		}
		if err := appendRecord(ctx, tx, s.opts.keys.Purchases, record); err != nil {
			return err
		}
		return put(ctx, tx, s.opts.keys.Session, updated.Profile())
	})
	if err != nil {
		return ledger.Profile{}, ledger.TokenPurchaseRecord{}, s.fail(op, err)
	}

	p := updated.Profile()
	s.session.attach(p)
	s.log.Debug("tokens purchased", "account", p.ID, "amount", amount, "cost", record.Cost.String(), "tokens", p.TokenBalance)
	return p, record, nil
}

// UseDesignToken spends one token from the signed-in account. It returns
// false, changing nothing, when the balance is already zero.
func (s *Service) UseDesignToken(ctx context.Context) (bool, error) {
	const op = "use_token"

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		fresh ledger.Account
		spent bool
	)
	err := s.store.Update(ctx, func(tx kv.Txn) error {
		spent = false
		accounts, i, err := s.current(ctx, op, tx)
		if err != nil {
			return err
		}
		if accounts[i].TokenBalance <= 0 {
			fresh = accounts[i]
			return nil
		}

		accounts[i].TokenBalance--
		fresh = accounts[i]

		if err := put(ctx, tx, s.opts.keys.Accounts, accounts); err != nil {
			return err
		}
		record := ledger.TokenConsumptionRecord{
			ID:         ledger.ConsumptionIDPrefix + s.opts.ids.Generate(),
			AccountID:  fresh.ID,
			ConsumedAt: s.opts.clock.Now(),
		}
		if err := appendRecord(ctx, tx, s.opts.keys.Consumptions, record); err != nil {
			return err
		}
		if err := put(ctx, tx, s.opts.keys.Session, fresh.Profile()); err != nil {
			return err
		}
		spent = true
		return nil
	})
	if err != nil {
		return false, s.fail(op, err)
	}

	s.session.attach(fresh.Profile())
	if !spent {
		s.log.Debug("no design tokens left", "account", fresh.ID)
		return false, nil
	}
	s.log.Debug("design token used", "account", fresh.ID, "tokens", fresh.TokenBalance)
	return true, nil
}

// CurrentAccount returns the signed-in account as currently stored in the
// ledger. ok is false when the session is anonymous.
func (s *Service) CurrentAccount(ctx context.Context) (p ledger.Profile, ok bool, err error) {
	const op = "current_account"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State() != Authenticated {
		return ledger.Profile{}, false, nil
	}

	var fresh ledger.Account
	err = s.store.View(ctx, func(r kv.Reader) error {
		accounts, i, err := s.current(ctx, op, r)
		if err != nil {
			return err
		}
		fresh = accounts[i]
		return nil
	})
	if err != nil {
		return ledger.Profile{}, false, s.fail(op, err)
	}

	p = fresh.Profile()
	s.session.attach(p)
	return p, true, nil
}

// IsAuthenticated reports whether the session has an account attached.
func (s *Service) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.State() == Authenticated
}

// State returns the session state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.State()
}

// Restore loads the persisted session snapshot, refreshed from the ledger.
// A snapshot that cannot be decoded, or whose account is missing from the
// ledger, is removed and the session stays Anonymous.
// It reports whether a session was restored.
func (s *Service) Restore(ctx context.Context) (bool, error) {
	const op = "restore"

	s.mu.Lock()
	defer s.mu.Unlock()

	var restored *ledger.Profile
	err := s.store.Update(ctx, func(tx kv.Txn) error {
		restored = nil
		raw, ok, err := tx.Get(ctx, s.opts.keys.Session)
		if err != nil || !ok {
			return err
		}
		snapshot, err := ledger.DecodeProfile(raw)
		if err != nil {
			s.log.Warn("discarding unreadable session", "key", s.opts.keys.Session, "error", err)
			return tx.Remove(ctx, s.opts.keys.Session)
		}
		accounts, err := s.loadAccounts(ctx, tx)
		if err != nil {
			return err
		}
		i, ok := accounts.ByID(snapshot.ID)
		if !ok {
			s.log.Warn("discarding session for unknown account", "account", snapshot.ID)
			return tx.Remove(ctx, s.opts.keys.Session)
		}
		p := accounts[i].Profile()
		restored = &p
		return nil
	})
	if err != nil {
		return false, s.fail(op, err)
	}

	if restored == nil {
		s.session.clear()
		return false, nil
	}
	s.session.attach(*restored)
	s.log.Debug("session restored", "account", restored.ID)
	return true, nil
}

// Packages lists the purchasable token packages.
func (s *Service) Packages() []catalog.Package {
	return s.opts.catalog.Packages()
}

// current resolves the session's account against the ledger.
// Callers must hold s.mu.
func (s *Service) current(ctx context.Context, op string, r kv.Reader) (ledger.Accounts, int, error) {
	p, ok := s.session.Account()
	if !ok {
		return nil, -1, newError(CodeAuth, op, "not authenticated")
	}
	accounts, err := s.loadAccounts(ctx, r)
	if err != nil {
		return nil, -1, err
	}
	i, ok := accounts.ByID(p.ID)
	if !ok {
		return nil, -1, newError(CodeAuth, op, "session account no longer exists")
	}
	return accounts, i, nil
}

func (s *Service) loadAccounts(ctx context.Context, r kv.Reader) (ledger.Accounts, error) {
	raw, ok, err := r.Get(ctx, s.opts.keys.Accounts)
	if err != nil {
		return nil, err
	}
	list, err := ledger.DecodeList[ledger.Account](raw, ok)
	if err != nil {
		return nil, err
	}
	return ledger.Accounts(list), nil
}

// fail classifies err for the caller. Service errors pass through; anything
// else came from the store or the codec and becomes a persistence error.
func (s *Service) fail(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		s.log.Warn("operation rejected", "op", op, "code", string(e.Code), "reason", e.Message)
		return e
	}
	s.log.Error("store failure", "op", op, "error", err)
	return &Error{Code: CodePersistence, Op: op, Message: "store operation failed", Err: err}
}

func put(ctx context.Context, tx kv.Txn, key string, v any) error {
	raw, err := ledger.Encode(v)
	if err != nil {
		return err
	}
	return tx.Set(ctx, key, raw)
}

func appendRecord[T any](ctx context.Context, tx kv.Txn, key string, rec T) error {
	raw, ok, err := tx.Get(ctx, key)
	if err != nil {
		return err
	}
	list, err := ledger.DecodeList[T](raw, ok)
	if err != nil {
		return err
	}
	return put(ctx, tx, key, append(list, rec))
}
