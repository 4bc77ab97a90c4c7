package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/roomlab/internal/auth"
	"github.com/roach88/roomlab/internal/kv"
	"github.com/roach88/roomlab/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i := 0; i+1 < len(e.Trace); i += 2 {
			inv, comp := e.Trace[i], e.Trace[i+1]
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", i/2+1, inv.Action, inv.Args, comp.OutputCase)
		}
	}

	return buf.String()
}

// AssertionContext provides the store and live service assertions read from.
type AssertionContext struct {
	Ctx     context.Context
	Store   kv.Store
	Service *auth.Service
	Keys    auth.Keys
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// Ledger and session assertions need actx; trace assertions do not.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertBalance, AssertPurchaseCount, AssertConsumptionCount, AssertSession:
			if actx == nil || actx.Store == nil || actx.Service == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a store and service", i, assertion.Type)
				break
			}
			if err = validateAssertion(i, &assertion); err != nil {
				break
			}
			err = evaluateLedgerAssertion(actx, result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func evaluateLedgerAssertion(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertBalance:
		return assertBalance(actx, trace, a)
	case AssertPurchaseCount:
		return assertRecordCount(actx, trace, a, actx.Keys.Purchases, func(r ledger.TokenPurchaseRecord) string { return r.AccountID })
	case AssertConsumptionCount:
		return assertRecordCount(actx, trace, a, actx.Keys.Consumptions, func(r ledger.TokenConsumptionRecord) string { return r.AccountID })
	default:
		return assertSession(actx, trace, a)
	}
}

// assertTraceContains checks if the trace contains an invocation matching
// the specified action and args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action {
			if matchArgs(event.Args, assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the actions appear as a subsequence of the
// invocations. Intervening actions are allowed and an action may repeat.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Actions) {
			break
		}
		if event.Type == "invocation" && event.Action == assertion.Actions[next] {
			next++
		}
	}

	if next < len(assertion.Actions) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
			Actual:   fmt.Sprintf("matched %v, then no %s", assertion.Actions[:next], assertion.Actions[next]),
			Trace:    trace,
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == "invocation" && event.Action == assertion.Action {
			count++
		}
	}

	want := 0
	if assertion.Count != nil {
		want = *assertion.Count
	}
	if count != want {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", want, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertBalance checks the stored balance of an account.
func assertBalance(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	accounts, err := readList[ledger.Account](actx, actx.Keys.Accounts)
	if err != nil {
		return err
	}

	i, ok := ledger.Accounts(accounts).ByEmail(ledger.NormalizeEmail(a.Email))
	if !ok {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("account %s with %d tokens", a.Email, *a.Tokens),
			Actual:   "no such account",
			Trace:    trace,
		}
	}
	if got := accounts[i].TokenBalance; got != *a.Tokens {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s has %d tokens", a.Email, *a.Tokens),
			Actual:   fmt.Sprintf("%d tokens", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertRecordCount counts history records, restricted to one account when
// the assertion names an email.
func assertRecordCount[T any](actx *AssertionContext, trace []TraceEvent, a Assertion, key string, owner func(T) string) error {
	records, err := readList[T](actx, key)
	if err != nil {
		return err
	}

	scope := "all accounts"
	accountID := ""
	if a.Email != "" {
		accounts, err := readList[ledger.Account](actx, actx.Keys.Accounts)
		if err != nil {
			return err
		}
		i, ok := ledger.Accounts(accounts).ByEmail(ledger.NormalizeEmail(a.Email))
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d records for %s", *a.Count, a.Email),
				Actual:   "no such account",
				Trace:    trace,
			}
		}
		accountID = accounts[i].ID
		scope = a.Email
	}

	count := 0
	for _, r := range records {
		if accountID == "" || owner(r) == accountID {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d records for %s", *a.Count, scope),
			Actual:   fmt.Sprintf("%d records", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSession checks the live session of the last service in the flow.
func assertSession(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	if got := actx.Service.State().String(); got != a.State {
		return &AssertionError{
			Type:     AssertSession,
			Expected: fmt.Sprintf("session %s", a.State),
			Actual:   fmt.Sprintf("session %s", got),
			Trace:    trace,
		}
	}
	if a.Email == "" {
		return nil
	}

	p, _, err := actx.Service.CurrentAccount(actx.Ctx)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if want := ledger.NormalizeEmail(a.Email); p.Email != want {
		return &AssertionError{
			Type:     AssertSession,
			Expected: fmt.Sprintf("signed in as %s", want),
			Actual:   fmt.Sprintf("signed in as %s", p.Email),
			Trace:    trace,
		}
	}
	return nil
}

func readList[T any](actx *AssertionContext, key string) ([]T, error) {
	var out []T
	err := actx.Store.View(actx.Ctx, func(r kv.Reader) error {
		raw, ok, err := r.Get(actx.Ctx, key)
		if err != nil {
			return err
		}
		out, err = ledger.DecodeList[T](raw, ok)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return out, nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]interface{}) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values for equality.
// Integers compare across widths, and a decimal string such as a cost
// compares equal to the number it spells.
func valuesEqual(actual, expected interface{}) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}

	if a, ok := toInt64(actual); ok {
		if e, ok := toInt64(expected); ok {
			return a == e
		}
	}

	if s, ok := actual.(string); ok {
		if f, ok := expected.(float64); ok {
			d, err := decimal.NewFromString(s)
			return err == nil && d.Equal(decimal.NewFromFloat(f))
		}
	}

	return reflect.DeepEqual(actual, expected)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}
